// Package protect decides which workspace paths the built-in tools may not
// modify.
package protect

// DefaultPatterns are glob patterns of protected paths, relative to the
// workspace root.
var DefaultPatterns = []string{
	".git/**",
	".kairo/**",
	"**/.ssh/**",
	"**/secrets/**",
	"**/credentials/**",
	"**/certs/**",
}

// DefaultFileTypes are extensions of protected files.
var DefaultFileTypes = []string{
	".env",
	".pem",
	".key",
	".p12",
	".pfx",
	".jks",
	".keystore",
}
