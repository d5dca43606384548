package fakes

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
)

// FakeSecretsManagerClient is an in-memory stand-in for *secretsmanager.Client.
//
// ListSecrets honours NextToken and returns PageSize entries per page so the
// SDK paginator runs more than once.
type FakeSecretsManagerClient struct {
	// Secrets maps secret names to their data
	Secrets map[string]*SecretData
	// Errors maps secret names to errors returned by GetSecretValue
	Errors map[string]error
	// ListError is returned by every ListSecrets call when set
	ListError error
	// PageSize is the number of entries per ListSecrets page (default 2)
	PageSize int

	mu        sync.Mutex
	listCalls int
	getCalls  int
}

// SecretData holds the data for a fake secret
type SecretData struct {
	SecretString *string
	SecretBinary []byte
}

// NewFakeSecretsManagerClient creates an empty fake client
func NewFakeSecretsManagerClient() *FakeSecretsManagerClient {
	return &FakeSecretsManagerClient{
		Secrets:  make(map[string]*SecretData),
		Errors:   make(map[string]error),
		PageSize: 2,
	}
}

// AddSecretString adds a string secret
func (f *FakeSecretsManagerClient) AddSecretString(name, value string) {
	f.Secrets[name] = &SecretData{SecretString: aws.String(value)}
}

// AddSecretBinary adds a binary secret
func (f *FakeSecretsManagerClient) AddSecretBinary(name string, value []byte) {
	f.Secrets[name] = &SecretData{SecretBinary: value}
}

// AddError configures GetSecretValue to fail for a specific secret
func (f *FakeSecretsManagerClient) AddError(name string, err error) {
	f.Errors[name] = err
}

// ListCalls returns how many ListSecrets pages were requested
func (f *FakeSecretsManagerClient) ListCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

// GetCalls returns how many times GetSecretValue was called
func (f *FakeSecretsManagerClient) GetCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getCalls
}

// GetSecretValue mocks the GetSecretValue operation
func (f *FakeSecretsManagerClient) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.mu.Lock()
	f.getCalls++
	f.mu.Unlock()

	secretName := aws.ToString(params.SecretId)

	if err, exists := f.Errors[secretName]; exists {
		return nil, err
	}

	data, exists := f.Secrets[secretName]
	if !exists {
		return nil, &types.ResourceNotFoundException{
			Message: aws.String(fmt.Sprintf("Secrets Manager can't find the specified secret: %s", secretName)),
		}
	}

	return &secretsmanager.GetSecretValueOutput{
		ARN:          aws.String(fmt.Sprintf("arn:aws:secretsmanager:us-east-1:123456789012:secret:%s", secretName)),
		Name:         params.SecretId,
		SecretString: data.SecretString,
		SecretBinary: data.SecretBinary,
	}, nil
}

// ListSecrets mocks the ListSecrets operation. Secrets are listed in name order.
func (f *FakeSecretsManagerClient) ListSecrets(ctx context.Context, params *secretsmanager.ListSecretsInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.ListSecretsOutput, error) {
	f.mu.Lock()
	f.listCalls++
	f.mu.Unlock()

	if f.ListError != nil {
		return nil, f.ListError
	}

	names := make([]string, 0, len(f.Secrets))
	for name := range f.Secrets {
		names = append(names, name)
	}
	sort.Strings(names)

	start := 0
	if token := aws.ToString(params.NextToken); token != "" {
		var err error
		if start, err = strconv.Atoi(token); err != nil {
			return nil, &types.InvalidNextTokenException{Message: aws.String("invalid token " + token)}
		}
	}
	pageSize := f.PageSize
	if pageSize < 1 {
		pageSize = 1
	}
	end := min(start+pageSize, len(names))

	out := &secretsmanager.ListSecretsOutput{}
	for _, name := range names[start:end] {
		out.SecretList = append(out.SecretList, types.SecretListEntry{
			Name: aws.String(name),
			ARN:  aws.String(fmt.Sprintf("arn:aws:secretsmanager:us-east-1:123456789012:secret:%s", name)),
		})
	}
	if end < len(names) {
		out.NextToken = aws.String(strconv.Itoa(end))
	}
	return out, nil
}
