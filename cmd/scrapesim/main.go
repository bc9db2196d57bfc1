// Command scrapesim stands in for the order scraper during local development.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"wxshop-dashboard/internal/config"
	"wxshop-dashboard/internal/observability"
	"wxshop-dashboard/internal/services"
)

type options struct {
	Addr   string
	Step   time.Duration
	Orders int
	Fail   bool
}

func (o options) validate() error {
	if o.Addr == "" {
		return fmt.Errorf("addr must not be empty")
	}
	if o.Step <= 0 {
		return fmt.Errorf("step must be positive, got %s", o.Step)
	}
	if o.Orders < 0 {
		return fmt.Errorf("orders must not be negative, got %d", o.Orders)
	}
	return nil
}

// newRootCmd builds the command around its own viper instance; serve runs
// once the options are valid.
func newRootCmd(v *viper.Viper, serve func(options) error) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "scrapesim",
		Short:        "Serve a fake order scraper on /api/scrape",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := options{
				Addr:   v.GetString("addr"),
				Step:   v.GetDuration("step"),
				Orders: v.GetInt("orders"),
				Fail:   v.GetBool("fail"),
			}
			if err := opts.validate(); err != nil {
				return err
			}
			return serve(opts)
		},
	}

	cmd.Flags().String("addr", ":8000", "listen address")
	cmd.Flags().Duration("step", 3*time.Second, "time spent in each job phase")
	cmd.Flags().Int("orders", 8, "orders returned per job")
	cmd.Flags().Bool("fail", false, "end every job with ERROR instead of COMPLETED")

	v.BindPFlags(cmd.Flags())
	v.SetEnvPrefix("SCRAPESIM")
	v.AutomaticEnv()

	return cmd
}

func serve(opts options) error {
	logger := observability.NewLogger(config.LoggerConfig{
		Level:  os.Getenv("LOG_LEVEL"),
		Format: "text",
	})
	gin.SetMode(gin.ReleaseMode)

	sim := newSimulator(opts.Step, opts.Orders, opts.Fail, services.NewGenerator(), logger)

	logger.Info("scrape simulator listening", "addr", opts.Addr, "step", opts.Step, "orders", opts.Orders, "fail", opts.Fail)
	return sim.routes().Run(opts.Addr)
}

func main() {
	if err := newRootCmd(viper.New(), serve).Execute(); err != nil {
		os.Exit(1)
	}
}
