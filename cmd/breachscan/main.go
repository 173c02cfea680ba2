// Package main provides the entry point for the breachscan CLI.
//
// breachscan checks email addresses against the Have I Been Pwned breach
// database and reports the results on the console, as files and by email.
//
// Usage:
//
//	breachscan check alice@example.com
//	breachscan check --list emails.csv --format xlsx --email-to security@example.com
//
// See --help for all available options.
package main

// main is the entry point for breachscan.
func main() {
	Execute()
}
