// Package firewall blocks known ways of bypassing the review and merge gates
// at the command-execution boundary.
//
// A command line is split into simple commands the way a shell would see
// them: quotes are honored, control operators (&&, ||, ;, |, &, newline)
// start a new command, leading variable assignments and wrappers such as
// sudo or env are dropped, and sh -c / eval scripts are checked recursively.
// Each [Rule] then inspects only words in command position, so text inside a
// commit message or an echo argument does not match.
//
// Rules are a fixed, ordered list and the first match blocks. Every block is
// appended to an [AuditLog]. [KnownGaps] documents bypasses that are accepted
// risk rather than matched by broader patterns.
package firewall
