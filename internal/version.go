package internal

// Version is the current version of gymchat.
const Version = "0.3.0"
