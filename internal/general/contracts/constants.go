package contracts

// ChannelName is the name of the command channel between the control process
// and the tracker service.
const ChannelName = "geotrack/foreground_service"

// Exchanges
const (
	ExchangeTrackingTopic = "tracking_topic"
)

// Queues
const (
	QueueTrackingCommands = "tracking_commands"
	QueueTrackingStatus   = "tracking_status"
)

// Routing patterns
const (
	RouteTrackingStatusPrefix = "tracking.status." // {active|idle}
	RouteTrackingStatusAll    = "tracking.status.*"
)

// Producers
const (
	ProducerTrackerService = "tracker-service"
	ProducerControlClient  = "control-client"
)
