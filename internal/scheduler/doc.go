// Package scheduler owns the table of recurring polling jobs.
//
// Jobs are keyed by a fixed id: one per monitor (media_added, media_removed,
// stream_started, transcoding) plus sync_libraries. Rebuild tears the whole
// table down and re-adds jobs from a settings.Service row, so the table always
// mirrors the last saved settings. Firing is delegated to robfig/cron with
// constant-delay schedules; a mutex serializes table mutation against
// snapshots and manual runs.
package scheduler
