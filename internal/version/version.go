package version

// Version is the sewa release string, overridable at link time.
var Version = "0.1.0"
