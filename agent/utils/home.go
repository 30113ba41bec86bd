package utils

import (
	"os"
	"os/user"
	"path/filepath"
)

// Version of the module, set by the build.
var Version = "0.1.0"

// HomeDir returns the user's home directory.
func HomeDir() string {
	if v := os.Getenv("HOME"); v != "" {
		return v
	}
	currentUser, err := user.Current()
	if err != nil {
		panic(err)
	}
	return currentUser.HomeDir
}

// DataDir returns the default directory for wallet, ledger and snapshot
// files: ~/.findy-vcx.
func DataDir() string {
	return filepath.Join(HomeDir(), ".findy-vcx")
}
