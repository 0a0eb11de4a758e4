package record

// Version constants for the on-disk format and the tool.
const (
	// FormatVersion is the metadata file format version.
	FormatVersion = "1"

	// ToolVersion is the dt release version.
	ToolVersion = "0.3.0"
)
