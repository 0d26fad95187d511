// Package shell implements the interactive datagov shell.
//
// Lines are split with shell quoting rules, so arguments containing
// spaces can be quoted. Every command has a short form:
//
//	search|s <query...> [limit]
//	show|describe|d <dataset_id>
//	download|dl <dataset_id> [index...]
//	list|ls organizations|orgs [limit]
//	suggest <prefix>
//	setdir|cd <path>
//	info|status
//	help|h|?
//	quit|exit|q
//
// Blank lines and lines starting with # are skipped, which lets a file of
// commands be piped into the shell.
package shell
