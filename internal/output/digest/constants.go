package digest

// Defaults.
const (
	DefaultDaysBack     = 1
	DefaultMinGroupSize = 1
	DefaultBatchSize    = 10
	DefaultSourceLimit  = 100
	DefaultHistoryDays  = 7
)

// Observability label constants.
const (
	StatusGenerated   = "generated"
	StatusNotRelevant = "not_relevant"
	StatusEmpty       = "empty"
	StatusError       = "error"
)

// Log field name constants.
const (
	LogFieldRunID  = "run_id"
	LogFieldUserID = "user_id"
	LogFieldMode   = "mode"
	LogFieldGroups = "groups"
)

const (
	bulletPrefix   = "• "
	listSeparator  = ", "
	titlePrefix    = "Daily Summary: "
	titleSources   = "Daily Summary from Sources: "
	labelSources   = "Sources: "
	unknownSource  = "Source "
	dateTimeLayout = "2006-01-02 15:04:05"
)
