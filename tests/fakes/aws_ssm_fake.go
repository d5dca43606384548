package fakes

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// FakeSSMClient is an in-memory stand-in for *ssm.Client.
//
// DescribeParameters honours the Name/BeginsWith filter and NextToken, and
// returns PageSize entries per page.
type FakeSSMClient struct {
	// Parameters maps full parameter names to their data
	Parameters map[string]*ParameterData
	// Errors maps parameter names to errors returned by GetParameter
	Errors map[string]error
	// ListError is returned by every DescribeParameters call when set
	ListError error
	// PageSize is the number of entries per DescribeParameters page (default 2)
	PageSize int

	mu        sync.Mutex
	listCalls int
	getCalls  int
}

// ParameterData holds the data for a fake parameter
type ParameterData struct {
	Value string
	Type  ssmtypes.ParameterType
}

// NewFakeSSMClient creates an empty fake client
func NewFakeSSMClient() *FakeSSMClient {
	return &FakeSSMClient{
		Parameters: make(map[string]*ParameterData),
		Errors:     make(map[string]error),
		PageSize:   2,
	}
}

// AddStringParameter adds a String parameter
func (f *FakeSSMClient) AddStringParameter(name, value string) {
	f.Parameters[name] = &ParameterData{Value: value, Type: ssmtypes.ParameterTypeString}
}

// AddSecureStringParameter adds a SecureString parameter
func (f *FakeSSMClient) AddSecureStringParameter(name, value string) {
	f.Parameters[name] = &ParameterData{Value: value, Type: ssmtypes.ParameterTypeSecureString}
}

// AddError configures GetParameter to fail for a specific parameter
func (f *FakeSSMClient) AddError(name string, err error) {
	f.Errors[name] = err
}

// ListCalls returns how many DescribeParameters pages were requested
func (f *FakeSSMClient) ListCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

// GetCalls returns how many times GetParameter was called
func (f *FakeSSMClient) GetCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getCalls
}

// GetParameter mocks the GetParameter operation
func (f *FakeSSMClient) GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.mu.Lock()
	f.getCalls++
	f.mu.Unlock()

	name := aws.ToString(params.Name)
	if err, ok := f.Errors[name]; ok {
		return nil, err
	}

	data, ok := f.Parameters[name]
	if !ok {
		return nil, &ssmtypes.ParameterNotFound{
			Message: aws.String("Parameter " + name + " not found."),
		}
	}

	value := data.Value
	if data.Type == ssmtypes.ParameterTypeSecureString && !aws.ToBool(params.WithDecryption) {
		value = "AQICAHencrypted"
	}

	return &ssm.GetParameterOutput{
		Parameter: &ssmtypes.Parameter{
			Name:    aws.String(name),
			Value:   aws.String(value),
			Type:    data.Type,
			Version: 1,
		},
	}, nil
}

// DescribeParameters mocks the DescribeParameters operation. Parameters are
// listed in name order.
func (f *FakeSSMClient) DescribeParameters(ctx context.Context, params *ssm.DescribeParametersInput, optFns ...func(*ssm.Options)) (*ssm.DescribeParametersOutput, error) {
	f.mu.Lock()
	f.listCalls++
	f.mu.Unlock()

	if f.ListError != nil {
		return nil, f.ListError
	}

	var prefixes []string
	for _, filter := range params.ParameterFilters {
		if aws.ToString(filter.Key) == "Name" && aws.ToString(filter.Option) == "BeginsWith" {
			prefixes = append(prefixes, filter.Values...)
		}
	}

	names := make([]string, 0, len(f.Parameters))
	for name := range f.Parameters {
		if len(prefixes) == 0 || hasAnyPrefix(name, prefixes) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	start := 0
	if token := aws.ToString(params.NextToken); token != "" {
		var err error
		if start, err = strconv.Atoi(token); err != nil {
			return nil, &ssmtypes.InvalidNextToken{Message: aws.String("invalid token " + token)}
		}
	}
	pageSize := f.PageSize
	if pageSize < 1 {
		pageSize = 1
	}
	end := min(start+pageSize, len(names))

	out := &ssm.DescribeParametersOutput{}
	for _, name := range names[start:end] {
		out.Parameters = append(out.Parameters, ssmtypes.ParameterMetadata{
			Name: aws.String(name),
			Type: f.Parameters[name].Type,
		})
	}
	if end < len(names) {
		out.NextToken = aws.String(strconv.Itoa(end))
	}
	return out, nil
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
