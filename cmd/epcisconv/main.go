// Package main is the entry point for the epcisconv CLI.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	epcisconv "github.com/openepcis/epcisconv"
	"github.com/openepcis/epcisconv/epcis"
	"github.com/openepcis/epcisconv/validation"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// fileConfig is the optional YAML config carrying default flag values.
type fileConfig struct {
	GS1CompliantDocument *bool `yaml:"gs1CompliantDocument"`
	AssociationEvents    *bool `yaml:"associationEvents"`
	PersistentDispo      *bool `yaml:"persistentDisposition"`
	SensorElements       *bool `yaml:"sensorElements"`
	Validate             *bool `yaml:"validate"`
}

func loadConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	if path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, ".epcisconv.yaml")
		}
		if _, err := os.Stat(path); err != nil {
			return cfg, nil
		}
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

type convertFlags struct {
	config       string
	from         string
	to           string
	toVersion    string
	out          string
	validate     bool
	noGS1        bool
	noAssoc      bool
	noPersistent bool
	noSensor     bool
	verbose      bool
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "epcisconv",
		Short:         "Convert EPCIS documents between XML/JSON-LD and versions 1.2/2.0",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newConvertCmd())
	root.AddCommand(newDetectCmd())
	return root
}

func newConvertCmd() *cobra.Command {
	var f convertFlags
	cmd := &cobra.Command{
		Use:   "convert [file...]",
		Short: "Convert EPCIS documents; reads stdin when no file is given",
		Example: `  # XML 1.2 file to JSON 2.0 on stdout
  epcisconv convert --from xml --to json shipment.xml

  # JSON 2.0 from stdin to XML 1.2
  epcisconv convert --from json --to xml --to-version 1.2 < doc.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(f, args)
		},
	}
	cmd.Flags().StringVar(&f.config, "config", "", "path to YAML config with default flags")
	cmd.Flags().StringVar(&f.from, "from", "", "input media type: xml or json (required)")
	cmd.Flags().StringVar(&f.to, "to", "", "output media type: xml or json (required)")
	cmd.Flags().StringVar(&f.toVersion, "to-version", "2.0", "output schema version: 1.2 or 2.0")
	cmd.Flags().StringVarP(&f.out, "output", "o", "", "output file or directory (default stdout)")
	cmd.Flags().BoolVar(&f.validate, "validate", false, "validate emitted events")
	cmd.Flags().BoolVar(&f.noGS1, "no-gs1-compliant", false, "do not restrict 1.2 output to the GS1 CBV profile")
	cmd.Flags().BoolVar(&f.noAssoc, "no-association-events", false, "drop AssociationEvents from 1.2 output")
	cmd.Flags().BoolVar(&f.noPersistent, "no-persistent-disposition", false, "drop persistentDisposition from 1.2 output")
	cmd.Flags().BoolVar(&f.noSensor, "no-sensor-elements", false, "drop sensorElementList from 1.2 output")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "log stage progress to stderr")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func runConvert(f convertFlags, args []string) error {
	cfg, err := loadConfig(f.config)
	if err != nil {
		return err
	}
	applyConfig(&f, cfg)

	fromMedia, err := parseMedia(f.from)
	if err != nil {
		return err
	}
	toMedia, err := parseMedia(f.to)
	if err != nil {
		return err
	}
	toVersion, err := parseVersion(f.toVersion)
	if err != nil {
		return err
	}

	log := zerolog.Nop()
	if f.verbose {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}

	opts := []epcisconv.Option{epcisconv.WithLogger(log)}
	if f.validate {
		v, err := validation.NewEventValidator()
		if err != nil {
			return err
		}
		opts = append(opts, epcisconv.WithValidator(v))
	}
	transformer := epcisconv.NewVersionTransformer(opts...)

	var convOpts []epcisconv.ConversionOpt
	if f.noGS1 {
		convOpts = append(convOpts, epcisconv.WithoutGS1CompliantDocument())
	}
	if f.noAssoc {
		convOpts = append(convOpts, epcisconv.WithoutAssociationEvents())
	}
	if f.noPersistent {
		convOpts = append(convOpts, epcisconv.WithoutPersistentDisposition())
	}
	if f.noSensor {
		convOpts = append(convOpts, epcisconv.WithoutSensorElements())
	}
	conversion := epcisconv.NewConversion(fromMedia, toMedia, toVersion, convOpts...)

	if len(args) == 0 {
		return convertOne(transformer, conversion, os.Stdin, f.out, toMedia)
	}
	if len(args) == 1 {
		in, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer in.Close()
		return convertOne(transformer, conversion, in, f.out, toMedia)
	}

	// Multiple inputs convert in parallel; --output names a directory.
	if f.out == "" {
		return fmt.Errorf("converting multiple files requires --output DIR")
	}
	if err := os.MkdirAll(f.out, 0o755); err != nil {
		return err
	}
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, name := range args {
		name := name
		g.Go(func() error {
			in, err := os.Open(name)
			if err != nil {
				return err
			}
			defer in.Close()
			dst := filepath.Join(f.out, outputName(name, toMedia))
			return convertOne(transformer, conversion, in, dst, toMedia)
		})
	}
	return g.Wait()
}

func convertOne(t *epcisconv.VersionTransformer, c epcisconv.Conversion, in io.Reader, out string, media epcis.MediaType) error {
	stream, err := t.Convert(in, c)
	if err != nil {
		return err
	}
	defer stream.Close()

	var w io.Writer = os.Stdout
	if out != "" {
		file, err := os.Create(out)
		if err != nil {
			return err
		}
		defer file.Close()
		w = file
	}
	_, err = io.Copy(w, stream)
	return err
}

func newDetectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect [file]",
		Short: "Report the media type and schema version of an EPCIS document",
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = os.Stdin
			if len(args) == 1 {
				file, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer file.Close()
				in = file
			}
			d, err := epcisconv.Detect(in)
			if err != nil {
				return err
			}
			fmt.Printf("%s %s\n", d.Media, d.Version)
			return nil
		},
	}
}

func applyConfig(f *convertFlags, cfg fileConfig) {
	if cfg.GS1CompliantDocument != nil && !*cfg.GS1CompliantDocument {
		f.noGS1 = true
	}
	if cfg.AssociationEvents != nil && !*cfg.AssociationEvents {
		f.noAssoc = true
	}
	if cfg.PersistentDispo != nil && !*cfg.PersistentDispo {
		f.noPersistent = true
	}
	if cfg.SensorElements != nil && !*cfg.SensorElements {
		f.noSensor = true
	}
	if cfg.Validate != nil && *cfg.Validate {
		f.validate = true
	}
}

func parseMedia(s string) (epcis.MediaType, error) {
	switch strings.ToLower(s) {
	case "xml", "application/xml":
		return epcis.MediaXML, nil
	case "json", "json-ld", "application/json", "application/ld+json":
		return epcis.MediaJSONLD, nil
	}
	return epcis.MediaUnknown, fmt.Errorf("unknown media type %q", s)
}

func parseVersion(s string) (epcis.Version, error) {
	switch s {
	case "1.2":
		return epcis.Version1_2, nil
	case "2.0":
		return epcis.Version2_0, nil
	}
	return epcis.VersionUnknown, fmt.Errorf("unknown EPCIS version %q", s)
}

func outputName(in string, media epcis.MediaType) string {
	base := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
	if media == epcis.MediaXML {
		return base + ".xml"
	}
	return base + ".json"
}
