package inventory

// Builtin category names.
const (
	CategoryUptime      = "uptime"
	CategoryPower       = "power"
	CategoryTemperature = "temperature"
	CategoryProcessors  = "processors"
	CategoryNICs        = "nics"
	CategoryDisks       = "disks"
)

// Identity fields shared by every category schema. They are populated from
// the parent Entity and the run batch epoch, never from the payload.
const (
	FieldDeviceID       = "DeviceId"
	FieldDeviceName     = "DeviceName"
	FieldSerialNumber   = "SerialNumber"
	FieldConsoleAddress = "ConsoleAddress"
	FieldCollectedEpoch = "CollectedEpoch"
)

// Category is a named detail domain with a fixed output schema. Endpoint
// templates and extraction mappings are declared per backend kind, since
// payload nesting differs per console family.
type Category struct {
	Name   string
	Schema Schema
}

func identitySchema() Schema {
	return Schema{
		{Name: FieldDeviceID, Type: TypeString},
		{Name: FieldDeviceName, Type: TypeString},
		{Name: FieldSerialNumber, Type: TypeString},
		{Name: FieldConsoleAddress, Type: TypeString},
		{Name: FieldCollectedEpoch, Type: TypeInt},
	}
}

func withIdentity(fields ...Field) Schema {
	return append(identitySchema(), fields...)
}

var builtinCategories = []Category{
	{
		Name: CategoryUptime,
		Schema: withIdentity(
			Field{Name: "UptimeSeconds", Type: TypeInt},
		),
	},
	{
		Name: CategoryPower,
		Schema: withIdentity(
			Field{Name: "AvgPowerWatts", Type: TypeFloat},
			Field{Name: "PeakPowerWatts", Type: TypeFloat},
			Field{Name: "InstantPowerWatts", Type: TypeFloat},
			Field{Name: "PowerState", Type: TypeString},
		),
	},
	{
		Name: CategoryTemperature,
		Schema: withIdentity(
			Field{Name: "InstantTempCelsius", Type: TypeFloat},
			Field{Name: "AvgTempCelsius", Type: TypeFloat},
			Field{Name: "PeakTempCelsius", Type: TypeFloat},
			Field{Name: "AvgTempTimeEpoch", Type: TypeEpoch},
		),
	},
	{
		Name: CategoryProcessors,
		Schema: withIdentity(
			Field{Name: "CpuBrand", Type: TypeString},
			Field{Name: "CpuModel", Type: TypeString},
			Field{Name: "MaxSpeedMhz", Type: TypeInt},
			Field{Name: "CoreCount", Type: TypeInt},
			Field{Name: "Status", Type: TypeString},
		),
	},
	{
		Name: CategoryNICs,
		Schema: withIdentity(
			Field{Name: "NicId", Type: TypeString},
			Field{Name: "NicVendor", Type: TypeString},
			Field{Name: "PortId", Type: TypeString},
			Field{Name: "IpAddress", Type: TypeString},
			Field{Name: "SubnetMask", Type: TypeString},
			Field{Name: "LinkStatus", Type: TypeString},
			Field{Name: "LinkSpeedMbps", Type: TypeInt},
			Field{Name: "Fqdn", Type: TypeString},
			Field{Name: "MacAddress", Type: TypeString},
			Field{Name: "VirtualMacAddress", Type: TypeString},
			Field{Name: "NicMode", Type: TypeString},
			Field{Name: "MinBandwidthPct", Type: TypeInt},
			Field{Name: "MaxBandwidthPct", Type: TypeInt},
		),
	},
	{
		Name: CategoryDisks,
		Schema: withIdentity(
			Field{Name: "DiskNumber", Type: TypeString},
			Field{Name: "DiskVendor", Type: TypeString},
			Field{Name: "DiskModel", Type: TypeString},
			Field{Name: "DiskSerialNumber", Type: TypeString},
			Field{Name: "SizeBytes", Type: TypeInt},
			Field{Name: "MediaType", Type: TypeString},
			Field{Name: "Status", Type: TypeString},
		),
	},
}

// Categories returns the builtin categories in declaration order.
func Categories() []Category {
	out := make([]Category, len(builtinCategories))
	copy(out, builtinCategories)

	return out
}

// CategoryNames returns the builtin category names in declaration order.
func CategoryNames() []string {
	names := make([]string, len(builtinCategories))
	for i, c := range builtinCategories {
		names[i] = c.Name
	}

	return names
}

// CategoryByName resolves a builtin category by name.
func CategoryByName(name string) (Category, bool) {
	for _, c := range builtinCategories {
		if c.Name == name {
			return c, true
		}
	}

	return Category{}, false
}
