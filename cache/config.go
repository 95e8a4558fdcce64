package cache

import "sync/atomic"

// actimeoMsecs is the process-wide attribute/confirmed-cache timeout, in
// milliseconds. It is set once at startup from the config package's
// actimeo option and read by every DirCache's confirmed-window check.
var actimeoMsecs atomic.Int64

func init() {
	actimeoMsecs.Store(60_000)
}

// SetActimeo configures the confirmed-cache timeout used by IsConfirmed
// across the whole process. Attribute expiry does not read it; it uses
// the ttl passed to Inode.SetAttr.
func SetActimeo(seconds int) {
	actimeoMsecs.Store(int64(seconds) * 1000)
}
