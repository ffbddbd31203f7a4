package i18n

// Error codes must match the codes defined in internal/platform/errors/codes.go.
// These are duplicated as strings to avoid an import cycle.
const (
	CodeUnknown             = "UNKNOWN"
	CodeValidation          = "VALIDATION_FAILED"
	CodeNotFound            = "NOT_FOUND"
	CodeStoreRead           = "STORE_READ_FAILED"
	CodeStoreWrite          = "STORE_WRITE_FAILED"
	CodeRecurrenceExpansion = "RECURRENCE_EXPANSION_FAILED"
)

var enUSMessages = map[Code]string{
	CodeUnknown:             "Something went wrong",
	CodeValidation:          "{{if .Field}}Invalid {{.Field}}{{if .Reason}}: {{.Reason}}{{end}}{{else}}Invalid request{{end}}",
	CodeNotFound:            "{{if .Kind}}{{.Kind}} not found{{else}}Not found{{end}}",
	CodeStoreRead:           "Failed to read from the attendance sheet",
	CodeStoreWrite:          "Failed to log attendance",
	CodeRecurrenceExpansion: "Session created, but its recurring instances could not be saved",
}
