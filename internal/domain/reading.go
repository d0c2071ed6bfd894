package domain

// Reading is a single sensor sample. The field set matches the columns of
// the target table; RawData carries the full original payload as an opaque
// structured blob alongside the individually typed columns.
type Reading struct {
	UUID             string  `json:"uuid"`
	RowID            string  `json:"rowid"`
	Hostname         string  `json:"hostname"`
	Host             string  `json:"host"`
	IPAddress        string  `json:"ipaddress"`
	MACAddress       string  `json:"macaddress"`
	Temperature      float64 `json:"temperature"`
	Humidity         float64 `json:"humidity"`
	CO2              float64 `json:"co2"`
	EquivalentCO2PPM float64 `json:"equivalentco2ppm"`
	TotalVOCPPB      float64 `json:"totalvocppb"`
	Pressure         float64 `json:"pressure"`
	CPUTempF         int     `json:"cputempf"`
	TemperatureICP   float64 `json:"temperatureicp"`
	CPU              float64 `json:"cpu"`
	Memory           float64 `json:"memory"`
	DiskUsage        string  `json:"diskusage"`
	Runtime          int     `json:"runtime"`
	TS               int64   `json:"ts"`
	SystemTime       string  `json:"systemtime"`
	StartTime        string  `json:"starttime"`
	EndTime          string  `json:"endtime"`
	DatetimeStamp    string  `json:"datetimestamp"`
	TE               string  `json:"te"`

	RawData map[string]interface{} `json:"raw_data,omitempty"`
}

// Batch is an ordered sequence of readings submitted as one atomic unit.
// A batch is never mutated after submission; a failed batch is retried
// as-is or dropped by the caller.
type Batch []Reading
