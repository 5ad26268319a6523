package flags

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/lap-market/marketplace-backend/api"
	"github.com/lap-market/marketplace-backend/common"
	"github.com/lap-market/marketplace-backend/storage"
	"github.com/urfave/cli/v2"
)

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logJSON := cCtx.Bool(LogJsonFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUidFlag.Name)
	logService := cCtx.String(LogServiceFlag.Name)

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   logDebug,
		JSON:    logJSON,
		Service: logService,
		Version: common.Version,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

func ConfigureServer(cCtx *cli.Context, logger *slog.Logger) *api.HTTPServerConfig {
	return &api.HTTPServerConfig{
		ListenAddr:               cCtx.String(ListenAddrFlag.Name),
		MetricsAddr:              cCtx.String(MetricsAddrFlag.Name),
		Log:                      logger,
		EnablePprof:              cCtx.Bool(PprofFlag.Name),
		DrainDuration:            time.Duration(cCtx.Int64(DrainSecondsFlag.Name)) * time.Second,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             30 * time.Second,
		AllowedOrigins:           cCtx.StringSlice(CorsOriginsFlag.Name),
		Upload: api.UploadLimits{
			MaxFileSize:    cCtx.Int64(MaxFileSizeFlag.Name),
			MaxImageSize:   cCtx.Int64(MaxImageSizeFlag.Name),
			MaxRequestSize: cCtx.Int64(MaxRequestSizeFlag.Name),
		},
	}
}

// StorageLocations returns the remote and local backend URIs. The remote URI is
// empty when no bucket is configured. An explicit --storage-remote-uri wins over
// the individual S3 flags.
func StorageLocations(cCtx *cli.Context) (remote, local string) {
	local = "file://" + cCtx.String(StorageLocalDirFlag.Name)

	if uri := cCtx.String(StorageRemoteURIFlag.Name); uri != "" {
		return uri, local
	}
	bucket := cCtx.String(S3BucketFlag.Name)
	if bucket == "" {
		return "", local
	}

	query := url.Values{}
	query.Set("region", cCtx.String(S3RegionFlag.Name))
	if endpoint := cCtx.String(S3EndpointFlag.Name); endpoint != "" {
		query.Set("endpoint", endpoint)
	}
	if cCtx.Bool(S3PathStyleFlag.Name) {
		query.Set("path_style", "true")
	}
	remoteURI := url.URL{Scheme: "s3", Host: bucket, RawQuery: query.Encode()}
	return remoteURI.String(), local
}

// StorageCredentials returns the S3 credentials from the flags, or from Vault
// when a Vault address is configured. It returns nil when neither is set.
func StorageCredentials(cCtx *cli.Context, logger *slog.Logger) (*storage.S3Credentials, error) {
	if addr := cCtx.String(VaultAddrFlag.Name); addr != "" {
		ctx, cancel := context.WithTimeout(cCtx.Context, 30*time.Second)
		defer cancel()
		return storage.LoadS3CredentialsFromVault(ctx, storage.VaultConfig{
			Address:   addr,
			Token:     cCtx.String(VaultTokenFlag.Name),
			MountPath: cCtx.String(VaultMountFlag.Name),
			DataPath:  cCtx.String(VaultPathFlag.Name),
		}, logger)
	}

	keyID := cCtx.String(S3AccessKeyFlag.Name)
	secret := cCtx.String(S3SecretKeyFlag.Name)
	if keyID == "" || secret == "" {
		return nil, nil
	}
	return &storage.S3Credentials{AccessKeyID: keyID, SecretAccessKey: secret}, nil
}

var LogJsonFlag = &cli.BoolFlag{
	Name:    "log-json",
	Value:   false,
	Usage:   "log in JSON format",
	EnvVars: []string{"LOG_JSON"},
}
var LogDebugFlag = &cli.BoolFlag{
	Name:    "log-debug",
	Value:   false,
	Usage:   "log debug messages",
	EnvVars: []string{"LOG_DEBUG"},
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}
var LogServiceFlag = &cli.StringFlag{
	Name:  "log-service",
	Value: common.PackageName,
	Usage: "add 'service' tag to logs",
}

var ListenAddrFlag = &cli.StringFlag{
	Name:    "listen-addr",
	Value:   "127.0.0.1:8080",
	Usage:   "address to listen on for API",
	EnvVars: []string{"LISTEN_ADDR"},
}
var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint",
}
var DrainSecondsFlag = &cli.Int64Flag{
	Name:  "drain-seconds",
	Value: 45,
	Usage: "seconds to wait in drain HTTP request",
}
var MetricsAddrFlag = &cli.StringFlag{
	Name:    "metrics-addr",
	Value:   "127.0.0.1:8090",
	Usage:   "address to listen on for Prometheus metrics, empty to disable",
	EnvVars: []string{"METRICS_ADDR"},
}
var CorsOriginsFlag = &cli.StringSliceFlag{
	Name:    "cors-origin",
	Usage:   "allowed CORS origin, may be repeated (default: all origins)",
	EnvVars: []string{"CORS_ORIGINS"},
}

var MaxFileSizeFlag = &cli.Int64Flag{
	Name:    "max-file-size",
	Value:   api.DefaultMaxFileSize,
	Usage:   "largest accepted file upload in bytes",
	EnvVars: []string{"FILE_STORAGE_MAX_FILE_SIZE"},
}
var MaxImageSizeFlag = &cli.Int64Flag{
	Name:    "max-image-size",
	Value:   api.DefaultMaxImageSize,
	Usage:   "largest accepted image upload in bytes",
	EnvVars: []string{"FILE_STORAGE_MAX_IMAGE_SIZE"},
}
var MaxRequestSizeFlag = &cli.Int64Flag{
	Name:    "max-request-size",
	Value:   api.DefaultMaxRequestSize,
	Usage:   "largest accepted multipart request body in bytes",
	EnvVars: []string{"FILE_STORAGE_MAX_REQUEST_SIZE"},
}

var StorageLocalDirFlag = &cli.StringFlag{
	Name:    "storage-local-dir",
	Value:   "./uploads",
	Usage:   "directory for local file storage",
	EnvVars: []string{"FILE_STORAGE_PATH"},
}
var StorageRemoteURIFlag = &cli.StringFlag{
	Name:    "storage-remote-uri",
	Usage:   "remote storage URI, e.g. s3://bucket?region=us-west-004&endpoint=https://s3.us-west-004.backblazeb2.com",
	EnvVars: []string{"STORAGE_REMOTE_URI"},
}
var S3BucketFlag = &cli.StringFlag{
	Name:    "s3-bucket",
	Usage:   "remote bucket name, empty to run on local storage only",
	EnvVars: []string{"S3_BUCKET"},
}
var S3RegionFlag = &cli.StringFlag{
	Name:    "s3-region",
	Value:   "us-east-1",
	Usage:   "remote bucket region",
	EnvVars: []string{"S3_REGION"},
}
var S3EndpointFlag = &cli.StringFlag{
	Name:    "s3-endpoint",
	Usage:   "S3-compatible endpoint, empty for AWS",
	EnvVars: []string{"S3_ENDPOINT"},
}
var S3PathStyleFlag = &cli.BoolFlag{
	Name:    "s3-path-style",
	Usage:   "use path-style bucket addressing",
	EnvVars: []string{"S3_PATH_STYLE"},
}
var S3AccessKeyFlag = &cli.StringFlag{
	Name:    "s3-access-key-id",
	Usage:   "remote storage access key id",
	EnvVars: []string{"S3_ACCESS_KEY_ID"},
}
var S3SecretKeyFlag = &cli.StringFlag{
	Name:    "s3-secret-access-key",
	Usage:   "remote storage secret access key",
	EnvVars: []string{"S3_SECRET_ACCESS_KEY"},
}

var VaultAddrFlag = &cli.StringFlag{
	Name:    "vault-addr",
	Usage:   "Vault address to read remote storage credentials from",
	EnvVars: []string{"VAULT_ADDR"},
}
var VaultTokenFlag = &cli.StringFlag{
	Name:    "vault-token",
	Usage:   "Vault token",
	EnvVars: []string{"VAULT_TOKEN"},
}
var VaultMountFlag = &cli.StringFlag{
	Name:    "vault-mount",
	Value:   "secret",
	Usage:   "Vault KV v2 mount path",
	EnvVars: []string{"VAULT_MOUNT"},
}
var VaultPathFlag = &cli.StringFlag{
	Name:    "vault-path",
	Value:   "marketplace/storage",
	Usage:   "Vault secret path holding access_key_id and secret_access_key",
	EnvVars: []string{"VAULT_SECRET_PATH"},
}

var CommonFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	LogServiceFlag,
}

var ServerFlags = []cli.Flag{
	ListenAddrFlag,
	PprofFlag,
	DrainSecondsFlag,
	MetricsAddrFlag,
	CorsOriginsFlag,
	MaxFileSizeFlag,
	MaxImageSizeFlag,
	MaxRequestSizeFlag,
}

var StorageFlags = []cli.Flag{
	StorageLocalDirFlag,
	StorageRemoteURIFlag,
	S3BucketFlag,
	S3RegionFlag,
	S3EndpointFlag,
	S3PathStyleFlag,
	S3AccessKeyFlag,
	S3SecretKeyFlag,
	VaultAddrFlag,
	VaultTokenFlag,
	VaultMountFlag,
	VaultPathFlag,
}
