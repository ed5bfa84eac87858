package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"voice-beyond/companion/ai"
	"voice-beyond/companion/internal/models"
)

func init() {
	character := &cobra.Command{
		Use:     "character",
		Aliases: []string{"characters", "char"},
		Short:   "Manage companion characters",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List your characters",
		Args:  cobra.NoArgs,
		RunE:  runCharacterList,
	}
	list.Flags().Bool("json", false, "Print the roster as JSON")

	create := &cobra.Command{
		Use:   "create",
		Short: "Create a character",
		Args:  cobra.NoArgs,
		RunE:  runCharacterCreate,
	}
	addCharacterFlags(create)
	create.Flags().String("voice", "", "Voice sample to clone (audio file)")

	edit := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a character; unset flags keep their value",
		Args:  cobra.ExactArgs(1),
		RunE:  runCharacterEdit,
	}
	addCharacterFlags(edit)

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a character and its conversation",
		Args:  cobra.ExactArgs(1),
		RunE:  runCharacterDelete,
	}

	upload := &cobra.Command{
		Use:   "upload-voice <id> <file>",
		Short: "Upload a voice sample for a character",
		Args:  cobra.ExactArgs(2),
		RunE:  runCharacterUploadVoice,
	}

	start := &cobra.Command{
		Use:   "start <id>",
		Short: "Pick the character the next chat opens with",
		Args:  cobra.ExactArgs(1),
		RunE:  runCharacterStart,
	}

	character.AddCommand(list, create, edit, del, upload, start)
	RootCmd.AddCommand(character)
}

func addCharacterFlags(cmd *cobra.Command) {
	cmd.Flags().String("name", "", "Character name")
	cmd.Flags().String("relationship", "", "Relationship to you")
	cmd.Flags().String("personality", "", "Personality description")
	cmd.Flags().String("topics", "", "Topics to talk about")
}

func characterInput(cmd *cobra.Command, base models.CharacterInput) models.CharacterInput {
	in := base
	for name, field := range map[string]*string{
		"name":         &in.Name,
		"relationship": &in.Relationship,
		"personality":  &in.Personality,
		"topics":       &in.Topics,
	} {
		if cmd.Flags().Changed(name) {
			*field, _ = cmd.Flags().GetString(name)
		}
	}
	return in
}

func runCharacterList(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")

	return withApp(cmd, nil, func(ctx context.Context, a *app) error {
		user, err := a.container.Users.Current(ctx)
		if err != nil {
			return err
		}
		characters, err := a.container.Characters.List(ctx, models.OwnerID(user))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(characters)
		}
		if len(characters) == 0 {
			fmt.Fprintln(out, "No characters yet. Create one with: voicebeyond character create")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tRELATIONSHIP\tVOICE")
		for _, c := range characters {
			voice := "-"
			if c.HasVoiceModel {
				voice = "cloned"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.ID, c.Name, c.Relationship, voice)
		}
		return w.Flush()
	})
}

func runCharacterCreate(cmd *cobra.Command, args []string) error {
	voicePath, _ := cmd.Flags().GetString("voice")
	in := characterInput(cmd, models.CharacterInput{})

	return withApp(cmd, nil, func(ctx context.Context, a *app) error {
		user, err := a.container.Users.Current(ctx)
		if err != nil {
			return err
		}

		var sample *ai.FilePart
		if voicePath != "" {
			f, err := os.Open(voicePath)
			if err != nil {
				return fmt.Errorf("open voice sample: %w", err)
			}
			defer f.Close()
			sample = &ai.FilePart{Filename: filepath.Base(voicePath), Content: f}
			// Uploads only go out when the backend answered its probe.
			a.container.ProbeBackend(ctx)
		}

		c, err := a.container.Characters.Create(ctx, user, in, sample)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%s)\n", c.Name, c.ID)
		return nil
	})
}

func runCharacterEdit(cmd *cobra.Command, args []string) error {
	return withApp(cmd, nil, func(ctx context.Context, a *app) error {
		current, err := a.container.Characters.Get(ctx, args[0])
		if err != nil {
			return err
		}
		in := characterInput(cmd, models.CharacterInput{
			Name:         current.Name,
			Relationship: current.Relationship,
			Personality:  current.Personality,
			Topics:       current.Topics,
		})
		c, err := a.container.Characters.Update(ctx, current.ID, in)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated %s (%s)\n", c.Name, c.ID)
		return nil
	})
}

func runCharacterDelete(cmd *cobra.Command, args []string) error {
	return withApp(cmd, nil, func(ctx context.Context, a *app) error {
		return a.container.Characters.Delete(ctx, args[0])
	})
}

func runCharacterUploadVoice(cmd *cobra.Command, args []string) error {
	return withApp(cmd, nil, func(ctx context.Context, a *app) error {
		f, err := os.Open(args[1])
		if err != nil {
			return fmt.Errorf("open voice sample: %w", err)
		}
		defer f.Close()

		c, err := a.container.Characters.UploadVoice(ctx, args[0], ai.FilePart{Filename: filepath.Base(args[1]), Content: f})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Voice sample uploaded for %s\n", c.Name)
		return nil
	})
}

func runCharacterStart(cmd *cobra.Command, args []string) error {
	return withApp(cmd, nil, func(ctx context.Context, a *app) error {
		c, err := a.container.Characters.Get(ctx, args[0])
		if err != nil {
			return err
		}
		if err := a.container.Characters.SetPendingSelection(ctx, c.ID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Next chat opens with %s. Run: voicebeyond chat\n", c.Name)
		return nil
	})
}
