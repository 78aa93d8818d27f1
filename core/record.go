package core

// maxRecordedOutput bounds the tool output copied into exchange metadata so
// a verbose tool cannot bloat the record attached to every response.
const maxRecordedOutput = 500

// ToolCallRecord is one append-only entry in the call history of an exchange:
// which tool ran, with what input, and a truncated copy of its output. Records
// belong to exchange metadata, never to the session record itself.
type ToolCallRecord struct {
	Tool   string `json:"tool"`
	Input  string `json:"input"`
	Output string `json:"output"`
}

// NewToolCallRecord builds a record, truncating output to a bounded size.
func NewToolCallRecord(tool, input, output string) ToolCallRecord {
	if len(output) > maxRecordedOutput {
		output = output[:maxRecordedOutput]
	}
	return ToolCallRecord{Tool: tool, Input: input, Output: output}
}
