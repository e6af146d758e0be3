// Package main is remindctl, the operator CLI for the reminder service. It
// lists the persisted reminder jobs and runs manual reminder sweeps directly
// against the database, without going through reminderd.
package main

func main() {
	execute()
}
