// Package config loads the command line defaults from .hitclient.json,
// hitclient.json, .hitclient.yaml or .hitclient.yml.
//
// Values missing from the file keep the defaults from DefaultConfig. Merge
// lays one config over another, which is how flags override the file.
package config
