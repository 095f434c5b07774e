package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/gyeh/claimcheck/internal/adjudicate"
	"github.com/gyeh/claimcheck/internal/catalog"
	"github.com/gyeh/claimcheck/internal/claims"
	"github.com/gyeh/claimcheck/internal/config"
	"github.com/gyeh/claimcheck/internal/exitcode"
	"github.com/gyeh/claimcheck/internal/logging"
	"github.com/gyeh/claimcheck/internal/model"
	"github.com/gyeh/claimcheck/internal/policy"
)

var adjudicateFlags struct {
	casePath     string
	rulesPath    string
	itemsPath    string
	servicesPath string
	parquetPath  string
}

var adjudicateCmd = &cobra.Command{
	Use:   "adjudicate",
	Short: "Adjudicate a claim case file offline (no database)",
	Long: `Reads a JSON case file holding the claim, the patient's balance and
prior claims, adjudicates it against the given rules and catalog, and
prints the result as JSON.`,
	RunE: runAdjudicate,
}

func init() {
	f := adjudicateCmd.Flags()
	f.StringVar(&adjudicateFlags.casePath, "case", "", "Path to JSON case file (required)")
	f.StringVar(&adjudicateFlags.rulesPath, "rules", "data/validation_rules.json", "Path to policy rules (YAML or JSON)")
	f.StringVar(&adjudicateFlags.itemsPath, "items", "", "Path to items.json catalog")
	f.StringVar(&adjudicateFlags.servicesPath, "services", "", "Path to services.json catalog")
	f.StringVar(&adjudicateFlags.parquetPath, "catalog", "", "Path to Parquet catalog (instead of --items/--services)")
	_ = adjudicateCmd.MarkFlagRequired("case")
	rootCmd.AddCommand(adjudicateCmd)
}

// caseFile is the input of the adjudicate command.
type caseFile struct {
	Claim   model.ClaimSubmission `json:"claim"`
	Balance struct {
		Allowed decimal.Decimal `json:"allowed_money"`
		Used    decimal.Decimal `json:"used_money"`
		Copay   json.RawMessage `json:"copay_rate"`
	} `json:"balance"`
	History []model.HistoryRecord `json:"history"`
}

func runAdjudicate(cmd *cobra.Command, args []string) error {
	log := logging.Setup(opts.LogFormat, logLevel)

	src, err := offlineSources()
	if err != nil {
		log.Error().Err(err).Msg("invalid catalog flags")
		os.Exit(exitcode.UsageError)
	}
	rules, err := src.LoadPolicy()
	if err != nil {
		log.Error().Err(err).Msg("load rules failed")
		os.Exit(exitcode.ValidationError)
	}
	cat, err := src.LoadCatalog(cmd.Context())
	if err != nil {
		log.Error().Err(err).Msg("load catalog failed")
		os.Exit(exitcode.ValidationError)
	}

	c, err := readCase(adjudicateFlags.casePath)
	if err != nil {
		log.Error().Err(err).Msg("read case file failed")
		os.Exit(exitcode.ValidationError)
	}
	copay, err := decodeCopay(c.Balance.Copay)
	if err != nil {
		log.Error().Err(err).Msg("decode copay_rate failed")
		os.Exit(exitcode.ValidationError)
	}

	res, err := runCase(c, copay, cat, rules)
	if err != nil {
		var aerr *adjudicate.Error
		if errors.As(err, &aerr) {
			printJSON(map[string]string{"error": string(aerr.Kind), "rule": aerr.Rule, "item_code": aerr.ItemCode, "detail": aerr.Detail})
			os.Exit(exitcode.ClaimRejected)
		}
		log.Error().Err(err).Msg("adjudication failed")
		os.Exit(exitcode.ServerError)
	}

	logResult(log, res, cat.Version())
	printJSON(res)
	if !res.IsValid {
		os.Exit(exitcode.ClaimRejected)
	}
	return nil
}

func runCase(c *caseFile, copay any, cat *catalog.Catalog, rules *policy.RuleSet) (*model.AdjudicationResult, error) {
	bal, err := adjudicate.NewBalance(c.Balance.Allowed, c.Balance.Used, copay)
	if err != nil {
		return nil, err
	}
	return adjudicate.Adjudicate(adjudicate.Input{
		Submission: &c.Claim,
		Balance:    bal,
		History:    c.History,
		Catalog:    cat,
		Rules:      rules,
	})
}

// offlineSources builds catalog sources from flags only; the database
// source is never used offline.
func offlineSources() (*claims.Sources, error) {
	src := &claims.Sources{
		RulesFile:    adjudicateFlags.rulesPath,
		ItemsFile:    adjudicateFlags.itemsPath,
		ServicesFile: adjudicateFlags.servicesPath,
		ParquetFile:  adjudicateFlags.parquetPath,
	}
	switch {
	case src.ParquetFile != "":
		src.CatalogSource = config.CatalogSourceParquet
	case src.ItemsFile != "" || src.ServicesFile != "":
		src.CatalogSource = config.CatalogSourceJSON
	default:
		return nil, fmt.Errorf("one of --catalog, --items or --services is required")
	}
	return src, nil
}

func readCase(path string) (*caseFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c caseFile
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &c, nil
}

// decodeCopay keeps numbers as json.Number so no precision is lost before
// the copay rate is parsed.
func decodeCopay(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func logResult(log zerolog.Logger, res *model.AdjudicationResult, catalogVersion string) {
	log.Info().
		Bool("valid", res.IsValid).
		Str("approved", res.TotalApproved.String()).
		Str("copay", res.TotalCopay.String()).
		Str("net", res.NetClaimable.String()).
		Int("warnings", len(res.AllWarnings())).
		Str("rules_version", res.RulesVersion).
		Str("catalog_version", catalogVersion).
		Msg("claim adjudicated")
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
