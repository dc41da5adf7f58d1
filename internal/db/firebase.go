package db

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/example/docsync/internal/config"
)

// Clients holds the Firebase SDK clients created from one app.
type Clients struct {
	App       *firebase.App
	Firestore *firestore.Client
	Auth      *auth.Client
	Backends  Backends
}

// Close releases the Firestore connection.
func (c *Clients) Close() error {
	if c == nil || c.Firestore == nil {
		return nil
	}
	return c.Firestore.Close()
}

// InitFirebase initializes the Firebase Admin SDK and builds every backend
// store from it. Credentials come from a service account file, a base64
// encoded service account JSON, or Application Default Credentials.
func InitFirebase(ctx context.Context, appConfig *config.Config, logger *zap.Logger) (*Clients, error) {
	if appConfig == nil {
		return nil, errors.New("InitFirebase: appConfig cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var opts []option.ClientOption
	switch {
	case appConfig.GoogleApplicationCredentials != "":
		logger.Info("Initializing Firebase with credentials file", zap.String("path", appConfig.GoogleApplicationCredentials))
		if _, err := os.Stat(appConfig.GoogleApplicationCredentials); os.IsNotExist(err) {
			logger.Warn("Credentials file specified in GOOGLE_APPLICATION_CREDENTIALS does not exist",
				zap.String("path", appConfig.GoogleApplicationCredentials))
		}
		opts = append(opts, option.WithCredentialsFile(appConfig.GoogleApplicationCredentials))
	case appConfig.FirebaseServiceAccountJSONBase64 != "":
		logger.Info("Initializing Firebase with Base64 encoded service account JSON")
		decoded, err := base64.StdEncoding.DecodeString(appConfig.FirebaseServiceAccountJSONBase64)
		if err != nil {
			return nil, fmt.Errorf("failed to decode FirebaseServiceAccountJSONBase64: %w", err)
		}
		opts = append(opts, option.WithCredentialsJSON(decoded))
	default:
		logger.Info("Initializing Firebase using Application Default Credentials (ADC)")
	}

	appCfg := &firebase.Config{
		ProjectID:     appConfig.FirebaseProjectID,
		DatabaseURL:   appConfig.FirebaseDatabaseURL,
		StorageBucket: appConfig.FirebaseStorageBucket,
	}
	app, err := firebase.NewApp(ctx, appCfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase.NewApp: %w", err)
	}

	fs, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("app.Firestore: %w", err)
	}
	logger.Info("Firestore client initialized successfully")

	clients := &Clients{
		App:       app,
		Firestore: fs,
		Backends: Backends{
			Documents: NewFirestoreStore(fs, logger),
			Tree:      NewRealtimeStore(app.DatabaseWithURL, appConfig.TreePollInterval, logger),
		},
	}

	if appConfig.FirebaseStorageBucket != "" {
		st, err := app.Storage(ctx)
		if err != nil {
			fs.Close()
			return nil, fmt.Errorf("app.Storage: %w", err)
		}
		bucket, err := st.DefaultBucket()
		if err != nil {
			fs.Close()
			return nil, fmt.Errorf("storage.DefaultBucket: %w", err)
		}
		clients.Backends.Assets = NewBucketAssetStore(bucket)
		logger.Info("Firebase Storage bucket attached", zap.String("bucket", appConfig.FirebaseStorageBucket))
	}

	if appConfig.AuthRequired {
		authClient, err := app.Auth(ctx)
		if err != nil {
			fs.Close()
			return nil, fmt.Errorf("app.Auth: %w", err)
		}
		clients.Auth = authClient
		logger.Info("Firebase Auth client initialized successfully")
	}

	return clients, nil
}

// Open returns the clients for appConfig.Backend. The memory backend has no
// SDK clients, only Backends.
func Open(ctx context.Context, appConfig *config.Config, logger *zap.Logger) (*Clients, error) {
	if appConfig.Backend == config.BackendMemory {
		if logger != nil {
			logger.Info("Using in-memory backends")
		}
		return &Clients{Backends: NewMemoryStore().Backends()}, nil
	}
	return InitFirebase(ctx, appConfig, logger)
}
