package recipe

// Canonical folder names inside a staging root.
const (
	SourceSubfolder = "source_subfolder"
	BuildSubfolder  = "build_subfolder"
)

// Layout is the staged directory structure of one build. It is created by
// the source assembler and shared by pointer with the patch engine and the
// toolchain; it is discarded once the build finishes.
type Layout struct {
	Variant Variant

	// Root is the staging root. Patch base paths are relative to it.
	Root string
	// SourceDir holds include/ and source/.
	SourceDir string
	// ConfigureDir holds the top-level build description.
	ConfigureDir string
	// BuildDir receives build outputs.
	BuildDir string
	// PatchDir holds the patch payload files.
	PatchDir string
	// LicenseDir is where the LICENSE file is copied from.
	LicenseDir string

	Tests    bool
	TestsDir string
	Tools    bool
	ToolsDir string
}
