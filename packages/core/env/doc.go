// Package env resolves {{name}} and {{$NAME}} placeholders in command line
// input.
//
// {{name}} reads a variable set with --var or loaded from a .env file.
// {{$NAME}} reads the process environment first and falls back to the same
// variables. {{name(args)}} calls a function from the builtin package.
// Unresolved placeholders are left in place and logged.
package env
