// Parses flags and configures logging for the voldap CLI.
//
// The CLI accepts the following global flags:
//
//	-q, --quiet     Suppress informational output.
//	-v, --verbose   Enable verbose output.
//	-d, --debug     Enable debug output.
//
// Flags override build-time defaults set via linker flags. After parsing, the
// global logger is reconfigured to reflect the final level before the server
// starts. Per-command flags also read VOLDAP_* environment variables, which a
// .env file in the working directory may provide.
package cli
