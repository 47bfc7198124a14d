package sdk

// Version is the SDK release identifier reported in the User-Agent header.
const Version = "0.1.0"
