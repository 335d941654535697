package e2e

import (
	"fmt"
	"log/slog"

	"github.com/gookit/color"
	"github.com/stretchr/testify/suite"

	"github.com/mama165/sdk-go/logs"
)

// BaseSuite wires the shared environment configuration and a step logger
// into every scenario suite.
type BaseSuite struct {
	suite.Suite
	Config Config
	Log    *slog.Logger
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	s.Log = logs.GetLoggerFromLevel(slog.LevelWarn)
}

// Step prints a colorized header so scenario phases stand out in the logs.
func (s *BaseSuite) Step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}
