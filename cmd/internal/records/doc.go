// Package records stores the collaboration records that sit next to accounts:
// announcements, meetings, chat-room messages and the activity log that
// tracks their creation.
//
// Creating an announcement, meeting or message appends an activity entry in
// the same store operation, so the log never disagrees with the data.
package records
