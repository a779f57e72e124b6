package seiche

// Version is reported by the command line tools.
const Version = "1.0.0"
