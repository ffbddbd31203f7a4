// Package domain defines the attendance entities (attendees, sessions,
// attendance records), the check-in method enumeration, the calendar-day
// policy used for duplicate detection, and the error taxonomy shared by the
// ledger, the expander, and the lookup service.
package domain
