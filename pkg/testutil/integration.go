package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// Environment variables read by integration tests.
const (
	EnvProject = "TAP_BIGQUERY_TEST_PROJECT"
	EnvDataset = "TAP_BIGQUERY_TEST_DATASET"
	EnvBucket  = "TAP_BIGQUERY_TEST_BUCKET"
)

// IntegrationTestSuite is the base for tests that talk to a real project.
// The suite skips itself in -short mode or when TAP_BIGQUERY_TEST_PROJECT
// is unset. Credentials come from the application default chain.
type IntegrationTestSuite struct {
	suite.Suite
	ctx       context.Context
	cancel    context.CancelFunc
	tempDir   string
	startTime time.Time

	ProjectID string
	Dataset   string
	Bucket    string
}

// SetupSuite runs before all tests in the suite
func (s *IntegrationTestSuite) SetupSuite() {
	if testing.Short() {
		s.T().Skip("Skipping integration test in short mode")
	}
	s.ProjectID = os.Getenv(EnvProject)
	if s.ProjectID == "" {
		s.T().Skipf("%s not set", EnvProject)
	}
	s.Dataset = os.Getenv(EnvDataset)
	s.Bucket = os.Getenv(EnvBucket)

	s.ctx, s.cancel = context.WithTimeout(context.Background(), 10*time.Minute)
	s.startTime = time.Now()

	tempDir, err := os.MkdirTemp("", "tap-bigquery-test-*")
	require.NoError(s.T(), err)
	s.tempDir = tempDir

	s.T().Logf("Integration test suite started in %s", s.tempDir)
}

// TearDownSuite runs after all tests in the suite
func (s *IntegrationTestSuite) TearDownSuite() {
	if s.cancel != nil {
		s.cancel()
	}

	if s.tempDir != "" {
		_ = os.RemoveAll(s.tempDir)
	}

	if !s.startTime.IsZero() {
		s.T().Logf("Integration test suite completed in %v", time.Since(s.startTime))
	}
}

// Context returns the suite context
func (s *IntegrationTestSuite) Context() context.Context {
	return s.ctx
}

// TempDir returns the suite's temporary directory
func (s *IntegrationTestSuite) TempDir() string {
	return s.tempDir
}
