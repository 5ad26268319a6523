package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"
	"github.com/lap-market/marketplace-backend/interfaces"
)

// S3Credentials is a static access key pair for the remote bucket.
type S3Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
}

// VaultConfig locates the KV v2 secret holding the remote bucket credentials.
// The secret must contain "access_key_id" and "secret_access_key".
type VaultConfig struct {
	Address   string
	Token     string
	MountPath string // e.g. "secret"
	DataPath  string // e.g. "marketplace/b2"
}

// LoadS3CredentialsFromVault reads the bucket credentials from Vault.
func LoadS3CredentialsFromVault(ctx context.Context, cfg VaultConfig, log *slog.Logger) (*S3Credentials, error) {
	start := time.Now()

	config := api.DefaultConfig()
	config.Address = cfg.Address
	config.Timeout = 30 * time.Second

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}

	mountPath := strings.Trim(cfg.MountPath, "/")
	dataPath := strings.Trim(cfg.DataPath, "/")

	// Vault KV v2 path structure
	path := fmt.Sprintf("%s/data/%s", mountPath, dataPath)

	secret, err := client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		log.Error("Failed to read from Vault", slog.String("path", path), "err", err)
		return nil, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("%w: no secret at %s", interfaces.ErrBackendMisconfigured, path)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: invalid data format in Vault response", interfaces.ErrBackendMisconfigured)
	}

	accessKeyID, _ := data["access_key_id"].(string)
	secretAccessKey, _ := data["secret_access_key"].(string)
	if accessKeyID == "" || secretAccessKey == "" {
		return nil, fmt.Errorf("%w: secret at %s is missing access_key_id or secret_access_key", interfaces.ErrBackendMisconfigured, path)
	}

	log.Info("Loaded S3 credentials from Vault",
		slog.String("path", path),
		slog.Duration("duration", time.Since(start)))

	return &S3Credentials{
		AccessKeyID:     accessKeyID,
		SecretAccessKey: secretAccessKey,
	}, nil
}
