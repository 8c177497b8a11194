package chrono

import (
	"digimon-scraper/internal/components/telemetry"
	"fmt"

	"github.com/robfig/cron/v3"
)

// CronAPI runs callbacks on a cron schedule.
type CronAPI interface {
	Cron(spec string, callback func()) error
}

// StandardCron is CronAPI on top of `github.com/robfig/cron/v3`. A callback
// that is still running when its next run is due skips that run.
type StandardCron struct {
	cron *cron.Cron
}

func NewStandardCron(tel telemetry.API) StandardCron {
	logger := cronLogger{tel: tel}
	cronner := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.SkipIfStillRunning(logger)),
	)
	cronner.Start()

	return StandardCron{
		cron: cronner,
	}
}

func (s StandardCron) Cron(spec string, callback func()) error {
	_, err := s.cron.AddFunc(spec, callback)
	return err
}

// Stop stops scheduling and waits for running callbacks to return.
func (s StandardCron) Stop() {
	<-s.cron.Stop().Done()
}

type cronLogger struct {
	tel telemetry.API
}

func (l cronLogger) formatParams(keysAndValues []any) []any {
	params := []any{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		params = append(params, fmt.Sprint(keysAndValues[i]), keysAndValues[i+1])
	}
	return params
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.tel.ReportDebug(fmt.Sprintf("cron: %s", msg), l.formatParams(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.tel.ReportBroken("cron", append([]any{fmt.Errorf("%s: %w", msg, err)}, l.formatParams(keysAndValues)...)...)
}
