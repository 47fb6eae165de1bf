package cmd

import (
	"fmt"
	"io"
	"log"
	"os"
	"sort"

	"github.com/mewkiz/pkg/term"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mewmew/liftgo/decode/x86"
	"github.com/mewmew/liftgo/entitylifter"
	"github.com/mewmew/liftgo/lift"
	"github.com/mewmew/liftgo/provider"
	"github.com/mewmew/liftgo/semantics"
	semx86 "github.com/mewmew/liftgo/semantics/x86"
)

var (
	// dbg logs debug messages with a "liftgo:" prefix to standard error.
	dbg = log.New(os.Stderr, term.MagentaBold("liftgo:")+" ", 0)
	// warn logs warning messages with a "warning:" prefix to standard error.
	warn = log.New(os.Stderr, term.RedBold("warning:")+" ", 0)
)

// stateInitNames maps the --state-init flag's accepted spellings onto
// lift.StateInit, per spec.md section 4.5's six-way enum.
var stateInitNames = map[string]lift.StateInit{
	"none":                   lift.StateInitNone,
	"zeroes":                 lift.StateInitZeroes,
	"undef":                  lift.StateInitUndef,
	"regglobals":             lift.StateInitRegGlobals,
	"regglobals-over-zeroes": lift.StateInitRegGlobalsOverZeroes,
	"regglobals-over-undef":  lift.StateInitRegGlobalsOverUndef,
}

var rootCmd = &cobra.Command{
	Use:           "liftgo",
	Short:         "Lift machine-code functions described by a program spec into LLVM IR",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runLift,
}

// Execute runs the root command, reporting any error to standard error and
// setting a non-zero exit status.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		warn.Printf("%+v", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringP("spec", "s", "", "path to the program spec JSON file (required)")
	rootCmd.Flags().IntP("mode", "m", 32, "x86 processor mode: 16, 32, or 64")
	rootCmd.Flags().String("state-init", "zeroes", "state init procedure: none, zeroes, undef, regglobals, regglobals-over-zeroes, regglobals-over-undef")
	rootCmd.Flags().Bool("symbolic-pc", false, "seed the PC register symbolically instead of concretely")
	rootCmd.Flags().Bool("symbolic-sp", false, "seed the SP register symbolically instead of concretely")
	rootCmd.Flags().Bool("symbolic-ra", false, "seed the return address symbolically instead of concretely")
	rootCmd.Flags().Bool("store-inferred", true, "let the type-hint injector overwrite a register with the type provider's concrete value")
	rootCmd.Flags().Bool("symbolic-register-types", false, "route a pointer-typed hinted register through the opaque taint function, even without a concrete value")
	rootCmd.Flags().BoolP("quiet", "q", false, "suppress non-error messages")
	rootCmd.MarkFlagRequired("spec")

	viper.BindPFlag("spec", rootCmd.Flags().Lookup("spec"))
	viper.BindPFlag("mode", rootCmd.Flags().Lookup("mode"))
	viper.BindPFlag("state-init", rootCmd.Flags().Lookup("state-init"))
	viper.BindPFlag("symbolic-pc", rootCmd.Flags().Lookup("symbolic-pc"))
	viper.BindPFlag("symbolic-sp", rootCmd.Flags().Lookup("symbolic-sp"))
	viper.BindPFlag("symbolic-ra", rootCmd.Flags().Lookup("symbolic-ra"))
	viper.BindPFlag("store-inferred", rootCmd.Flags().Lookup("store-inferred"))
	viper.BindPFlag("symbolic-register-types", rootCmd.Flags().Lookup("symbolic-register-types"))
	viper.BindPFlag("quiet", rootCmd.Flags().Lookup("quiet"))

	viper.SetEnvPrefix("liftgo")
	viper.AutomaticEnv()
}

func runLift(cmd *cobra.Command, args []string) error {
	if viper.GetBool("quiet") {
		dbg.SetOutput(io.Discard)
	}

	specPath := viper.GetString("spec")
	spec, err := provider.LoadProgramSpec(specPath)
	if err != nil {
		return errors.Wrapf(err, "loading program spec %q", specPath)
	}

	types := provider.NewTypeRegistry()
	typeProvider, err := provider.NewStaticTypeProvider(spec, types)
	if err != nil {
		return errors.WithStack(err)
	}
	oracle, err := provider.NewMapByteOracle(spec.MemoryRanges)
	if err != nil {
		return errors.WithStack(err)
	}
	redirect, err := provider.NewMapRedirectProvider(spec.Redirections)
	if err != nil {
		return errors.WithStack(err)
	}

	backend := x86.New(x86.Mode(viper.GetInt("mode")))
	options, err := optionsFromFlags()
	if err != nil {
		return err
	}

	ctx := lift.NewContext()
	l := lift.New(backend, oracle, typeProvider, redirect, semanticsLibrary(), options, ctx)
	lc := entitylifter.New(l.Module(), l, ctx)

	decls := typeProvider.Declarations()
	sort.Slice(decls, func(i, j int) bool { return decls[i].Address < decls[j].Address })

	for _, decl := range decls {
		dbg.Printf("lifting %s at %s", decl.DisplayName(), decl.Address)
		if _, err := lc.LiftEntity(decl); err != nil {
			return errors.Wrapf(err, "lifting %s at %s", decl.DisplayName(), decl.Address)
		}
	}

	fmt.Println(lc.Module)
	return nil
}

// optionsFromFlags builds a lift.Options from the bound flag values.
func optionsFromFlags() (lift.Options, error) {
	stateInit, ok := stateInitNames[viper.GetString("state-init")]
	if !ok {
		return lift.Options{}, errors.Errorf("unknown --state-init value %q", viper.GetString("state-init"))
	}
	return lift.Options{
		StateInit:                   stateInit,
		SymbolicPC:                  viper.GetBool("symbolic-pc"),
		SymbolicSP:                  viper.GetBool("symbolic-sp"),
		SymbolicRA:                  viper.GetBool("symbolic-ra"),
		StoreInferredRegisterValues: viper.GetBool("store-inferred"),
		SymbolicRegisterTypes:       viper.GetBool("symbolic-register-types"),
	}, nil
}

// semanticsLibrary returns the x86 instruction-semantics template library,
// the only architecture this CLI wires end-to-end; a second architecture
// needs its own decode.ArchBackend and semantics.Library pairing added to
// this function before --arch could grow past x86.
func semanticsLibrary() semantics.Library {
	return semx86.New()
}
