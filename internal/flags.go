package internal

import (
	"fmt"

	"github.com/spf13/cobra"
)

// AddTranscriptionFlags adds flags related to transcript extraction
func AddTranscriptionFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("fallback-whisper", false, "Fallback to Whisper if no captions available (costs money)")
	cmd.Flags().String("lang", "", "Preferred caption language (default from config)")
}

// AddOpenAIFlags adds flags related to OpenAI API functionality
func AddOpenAIFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("model", "m", "", "OpenAI model to use")
	cmd.Flags().StringP("prompt", "p", "", "Custom prompt template (string or file path)")
}

// ApplyTranscriptionFlags copies explicitly set transcription flags into config
func ApplyTranscriptionFlags(cmd *cobra.Command, config *Config) {
	if f := cmd.Flags().Lookup("fallback-whisper"); f != nil && f.Changed {
		config.FallbackWhisper, _ = cmd.Flags().GetBool("fallback-whisper")
	}
	if f := cmd.Flags().Lookup("lang"); f != nil && f.Changed {
		config.TranscriptLanguage, _ = cmd.Flags().GetString("lang")
	}
}

// HandlePromptFlag processes the --prompt flag. target selects which template
// it overrides: the analysis prompt or the report prompt.
func HandlePromptFlag(cmd *cobra.Command, target *string, verbose bool) error {
	promptFlag := cmd.Flags().Lookup("prompt")
	if promptFlag == nil || !promptFlag.Changed {
		return nil
	}

	prompt, err := cmd.Flags().GetString("prompt")
	if err != nil {
		return fmt.Errorf("failed to get prompt flag: %w", err)
	}
	if prompt == "" {
		return nil
	}

	*target = prompt

	if verbose {
		if IsLikelyFilePath(prompt) && FileExists(prompt) {
			fmt.Printf("Using custom prompt file: %s\n", prompt)
		} else {
			fmt.Printf("Using custom prompt string\n")
		}
	}

	return nil
}

// HandleVerboseFlag processes the --verbose flag to update config
func HandleVerboseFlag(cmd *cobra.Command, config *Config) error {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return fmt.Errorf("failed to get verbose flag: %w", err)
	}
	if verbose {
		config.Verbose = true
	}
	return nil
}

// ValidateOpenAIRequirements validates the OpenAI API key and the model
// selected by --model (stored into *model) or by config.
func ValidateOpenAIRequirements(cmd *cobra.Command, config *Config, model *string) error {
	if err := ValidateOpenAIAPIKey(config.OpenAIAPIKey); err != nil {
		return err
	}

	modelFlag, _ := cmd.Flags().GetString("model")
	if modelFlag != "" {
		if err := ValidateModel(modelFlag); err != nil {
			return err
		}
		*model = modelFlag
	} else if err := ValidateModel(*model); err != nil {
		return fmt.Errorf("invalid model in config: %w", err)
	}

	return nil
}
