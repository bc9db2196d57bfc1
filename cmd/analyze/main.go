// Command analyze prints the dashboard statistics for an orders CSV file or
// a batch of synthesized orders.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"wxshop-dashboard/internal/models"
	"wxshop-dashboard/internal/narrative"
	"wxshop-dashboard/internal/services"
)

var cfgFile string

type options struct {
	File     string
	Count    int
	Seed     int64
	Insights bool
	Query    string
	Model    string
	APIKey   string
	Quiet    bool
}

type report struct {
	Source      string               `json:"source"`
	Orders      int                  `json:"orders"`
	Skipped     int64                `json:"skipped"`
	Summary     models.Summary       `json:"summary"`
	DailyTrend  []models.DailyStat   `json:"salesTrend"`
	TopProducts []models.ProductStat `json:"topProducts"`
	RegionDist  []models.RegionStat  `json:"geoStats"`
	Insights    string               `json:"insights,omitempty"`
}

var rootCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Summarize shop orders the way the dashboard does",
	Long:  `analyze reads an orders CSV (id,order_number,customer_name,product_name,amount,status,date,province) or synthesizes orders, then prints the daily trend, top products, region distribution and summary as JSON.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := options{
			File:     viper.GetString("file"),
			Count:    viper.GetInt("count"),
			Seed:     viper.GetInt64("seed"),
			Insights: viper.GetBool("insights"),
			Query:    viper.GetString("query"),
			Model:    viper.GetString("model"),
			APIKey:   viper.GetString("gemini-api-key"),
			Quiet:    viper.GetBool("quiet"),
		}
		return run(cmd.Context(), opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./.analyze.yaml)")

	rootCmd.Flags().String("file", "", "orders CSV file; synthesizes orders when empty")
	rootCmd.Flags().Int("count", 50, "number of orders to synthesize")
	rootCmd.Flags().Int64("seed", 0, "random seed for synthesized orders (0 picks one)")
	rootCmd.Flags().Bool("insights", false, "ask the narrative model for a written analysis")
	rootCmd.Flags().String("query", "", "question for the narrative model")
	rootCmd.Flags().String("model", "gemini-3-flash-preview", "narrative model name")
	rootCmd.Flags().Bool("quiet", false, "hide the progress bar")

	viper.BindPFlags(rootCmd.Flags())
	viper.BindEnv("gemini-api-key", "GEMINI_API_KEY", "API_KEY")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".analyze")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func run(ctx context.Context, opts options, out, errOut io.Writer) error {
	var (
		orders  []models.Order
		skipped int64
		source  string
		err     error
	)

	if opts.File != "" {
		source = opts.File
		orders, skipped, err = readFile(ctx, opts.File, opts.Quiet, errOut)
		if err != nil {
			return err
		}
	} else {
		if opts.Count < 0 {
			return fmt.Errorf("count must not be negative, got %d", opts.Count)
		}
		seed := opts.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		source = fmt.Sprintf("generated (seed %d)", seed)
		orders = services.NewSeededGenerator(seed, time.Now).Orders(opts.Count)
	}

	stats := services.Aggregate(orders)
	rep := report{
		Source:      source,
		Orders:      len(orders),
		Skipped:     skipped,
		Summary:     services.Summarize(orders, time.Time{}),
		DailyTrend:  stats.DailyTrend,
		TopProducts: stats.TopProducts,
		RegionDist:  stats.RegionDist,
	}

	if opts.Insights {
		rep.Insights, err = insights(ctx, opts, stats)
		if err != nil {
			return err
		}
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

func readFile(ctx context.Context, path string, quiet bool, errOut io.Writer) ([]models.Order, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open orders file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("stat orders file: %w", err)
	}

	var r io.Reader = f
	var bar *progressbar.ProgressBar
	if !quiet {
		bar = progressbar.NewOptions64(info.Size(),
			progressbar.OptionSetWriter(errOut),
			progressbar.OptionSetDescription("reading orders"),
			progressbar.OptionShowBytes(true),
			progressbar.OptionClearOnFinish(),
		)
		r = io.TeeReader(f, bar)
	}

	rows := 0
	orders, skipped, err := services.ReadOrdersCSV(ctx, r, func(n int) {
		rows += n
		if bar != nil {
			bar.Describe(fmt.Sprintf("reading orders (%d rows)", rows))
		}
	})
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return nil, 0, fmt.Errorf("read orders file: %w", err)
	}
	return orders, skipped, nil
}

func insights(ctx context.Context, opts options, stats models.Stats) (string, error) {
	model, err := narrative.NewGemini(ctx, opts.APIKey, opts.Model)
	if err != nil {
		return "", fmt.Errorf("narrative model: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return narrative.NewAnalyst(model, time.Minute, logger).Analyze(ctx, stats, opts.Query), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
