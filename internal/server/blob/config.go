package blob

import "time"

const (
	// BackendLocal stores blob bytes on the local filesystem.
	BackendLocal = "local"
	// BackendS3 stores blob bytes in an S3-compatible bucket.
	BackendS3 = "s3"
)

const (
	// DefaultSweepInterval is how often the garbage collector runs. A blob
	// must sit unreferenced for at least one full interval before it is
	// collected.
	DefaultSweepInterval = 5 * time.Minute
)

type Config struct {
	// Backend selects the byte store: "local" or "s3".
	Backend string

	// LocalDir is the root of the local content-addressed store.
	LocalDir string

	// S3 configures the bucket backend when Backend == "s3".
	S3 *S3Config

	// SweepInterval overrides DefaultSweepInterval. Zero disables the
	// background sweeper (tests drive collection manually).
	SweepInterval time.Duration
}

type S3Config struct {
	BucketName    string
	Region        string
	Endpoint      string
	AccessKey     string
	SecretKey     string
	UseAccelerate bool
}
