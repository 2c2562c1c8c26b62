package storage

import (
	"errors"
	"os"
)

// ErrMissingCredentials is returned when an s3:// URI is in play but the
// environment carries no credentials. The message is part of the CLI
// contract.
var ErrMissingCredentials = errors.New("Must set AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY when uploading results to S3")

// Credentials holds the static AWS credential pair resolved once at
// startup.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
}

// CredentialsFromEnv resolves credentials from the environment, failing
// fast when either variable is unset.
func CredentialsFromEnv() (Credentials, error) {
	id := os.Getenv("AWS_ACCESS_KEY_ID")
	secret := os.Getenv("AWS_SECRET_ACCESS_KEY")
	if id == "" || secret == "" {
		return Credentials{}, ErrMissingCredentials
	}
	return Credentials{AccessKeyID: id, SecretAccessKey: secret}, nil
}
