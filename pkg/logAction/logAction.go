package logAction

// LoggerAction describes what a detail log line is about.
type LoggerAction struct {
	Action            string
	ActionDescription string
	SubAction         string
}

const (
	DB_CREATE = "create"
	DB_READ   = "read"
	DB_UPDATE = "update"
	DB_DELETE = "delete"
)

func INBOUND(description string) LoggerAction {
	return LoggerAction{Action: "INBOUND", ActionDescription: description}
}

func OUTBOUND(description string) LoggerAction {
	return LoggerAction{Action: "OUTBOUND", ActionDescription: description}
}

func DB_REQUEST(operation, description string) LoggerAction {
	return LoggerAction{Action: "DB_REQUEST", SubAction: operation, ActionDescription: description}
}

func DB_RESPONSE(operation, description string) LoggerAction {
	return LoggerAction{Action: "DB_RESPONSE", SubAction: operation, ActionDescription: description}
}

func HTTP_REQUEST(description string) LoggerAction {
	return LoggerAction{Action: "HTTP_REQUEST", ActionDescription: description}
}

func HTTP_RESPONSE(description string) LoggerAction {
	return LoggerAction{Action: "HTTP_RESPONSE", ActionDescription: description}
}

func PRODUCE(topic string) LoggerAction {
	return LoggerAction{Action: "PRODUCE", ActionDescription: topic}
}

func EXCEPTION(description string) LoggerAction {
	return LoggerAction{Action: "EXCEPTION", ActionDescription: description}
}
