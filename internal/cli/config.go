package cli

// DefaultDescriptorName is the descriptor file looked for when none is given
const DefaultDescriptorName = "ee.yaml"

// Config holds the options of the describe pipeline
type Config struct {
	// Directories lists the source patterns to scan; "./..." scans recursively
	Directories []string

	// Descriptor is the deployment descriptor path. When empty, a single
	// ee.yaml below the scanned roots is used if there is one.
	Descriptor string

	// Application and Module name the deployment. Empty values fall back to
	// the descriptor, then to the last element of the go.mod module path.
	Application string
	Module      string

	// Verbose enables detailed output and error causes
	Verbose bool
}
