package message

// Well known measurement keys set by header parsers
const (
	Length          string = "Length"
	FailureCode     string = "FailureCode"
	SignalStrength  string = "SignalStrength"
	FrequencyOffset string = "FrequencyOffset"
	ModulationIndex string = "ModulationIndex"
	DataQuality     string = "DataQuality"
	Channel         string = "Channel"
	Spacecraft      string = "Spacecraft"
	UplinkCarrier   string = "UplinkCarrier"
	RelayStation    string = "RelayStation"
	ShefType        string = "ShefType"
	DeviceEndTime   string = "DeviceEndTime"
	StationSource   string = "Source"
	Session         string = "Session"
	SessionStatus   string = "SessionStatus"
	MOMSN           string = "MOMSN"
	MTMSN           string = "MTMSN"
	CDRReference    string = "CDRReference"
	Latitude        string = "Latitude"
	Longitude       string = "Longitude"
	CEPRadius       string = "CEPRadius"
)

// Medium type tags
const (
	MediumGOES          string = "goes"
	MediumGOESSelfTimed string = "goes-self-timed"
	MediumGOESRandom    string = "goes-random"
	MediumIridium       string = "iridium"
	MediumShef          string = "shef"
	MediumEDL           string = "edl"
	MediumPolledTCP     string = "polled-tcp"
)

// One way a platform can be identified on a transport
type TransportMedium struct {
	MediumType string `json:"mediumType"`
	MediumID   string `json:"mediumId"`
	Channel    int    `json:"channel,omitempty"`
	TimeZone   string `json:"timeZone,omitempty"`
}

// Organizational metadata attached to a message by the resolver
type Platform struct {
	ID          string            `json:"id"`
	Agency      string            `json:"agency,omitempty"`
	Description string            `json:"description,omitempty"`
	Media       []TransportMedium `json:"transportMedia"`
	Properties  map[string]string `json:"properties,omitempty"`
}
