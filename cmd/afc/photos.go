package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/franz/figure-curator/internal/photos"
	"github.com/franz/figure-curator/internal/util"
	"github.com/spf13/cobra"
)

var photosCmd = &cobra.Command{
	Use:   "photos",
	Short: "Manage the photos attached to figures",
}

var photosAddCmd = &cobra.Command{
	Use:   "add <figure-id> <file>...",
	Short: "Attach photo files to a figure",
	Long: `Attach photo files to a figure.

The files are copied into the managed photos directory under
figure_<id>_<n>_<name>; the originals are left alone. Unreadable files
are skipped with a warning. The first photo a figure ever gets becomes
its primary photo automatically.

Examples:
  afc photos add 3 front.jpg back.jpg
  afc photos add 3 boxed.jpg --caption "Still sealed" --primary`,
	Args: cobra.MinimumNArgs(2),
	RunE: runPhotosAdd,
}

var photosListCmd = &cobra.Command{
	Use:   "list <figure-id>",
	Short: "List a figure's photos",
	Args:  cobra.ExactArgs(1),
	RunE:  runPhotosList,
}

var photosSetPrimaryCmd = &cobra.Command{
	Use:   "set-primary <figure-id> <photo-id>",
	Short: "Make one photo the figure's primary photo",
	Args:  cobra.ExactArgs(2),
	RunE:  runPhotosSetPrimary,
}

var photosDeleteCmd = &cobra.Command{
	Use:   "delete <photo-id>",
	Short: "Delete a photo entry and its file",
	Args:  cobra.ExactArgs(1),
	RunE:  runPhotosDelete,
}

func init() {
	rootCmd.AddCommand(photosCmd)
	photosCmd.AddCommand(photosAddCmd)
	photosCmd.AddCommand(photosListCmd)
	photosCmd.AddCommand(photosSetPrimaryCmd)
	photosCmd.AddCommand(photosDeleteCmd)

	photosAddCmd.Flags().String("caption", "", "caption for the attached photos")
	photosAddCmd.Flags().Bool("primary", false, "make the first attached photo the primary one")

	photosDeleteCmd.Flags().Bool("yes", false, "delete without asking")
}

func runPhotosAdd(cmd *cobra.Command, args []string) error {
	util.SetVerbose(getBool(cmd, "verbose"))
	util.SetQuiet(getBool(cmd, "quiet"))

	figureID, err := parseID(args[0])
	if err != nil {
		return err
	}
	caption, _ := cmd.Flags().GetString("caption")
	primary, _ := cmd.Flags().GetBool("primary")

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	manager := photos.NewManager(db, photosDir())
	attached, err := manager.Attach(figureID, args[1:], caption, primary)
	if err != nil {
		return err
	}

	if len(attached) == 0 {
		util.WarnLog("No photos attached (were the files readable?)")
		return nil
	}

	util.SuccessLog("Attached %d photos to figure %d", len(attached), figureID)
	return nil
}

func runPhotosList(cmd *cobra.Command, args []string) error {
	figureID, err := parseID(args[0])
	if err != nil {
		return err
	}

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	figure, err := db.GetFigure(figureID)
	if err != nil {
		return err
	}
	if figure == nil {
		return fmt.Errorf("figure %d: %w", figureID, util.ErrNotFound)
	}

	list, err := db.GetFigurePhotos(figureID)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		util.InfoLog("%q has no photos. Attach some with 'afc photos add %d <file>...'",
			figure.Name, figureID)
		return nil
	}

	fmt.Printf("Photos of %q:\n", figure.Name)
	for _, p := range list {
		marker := " "
		if p.IsPrimary {
			marker = "✓"
		}
		detail := "  (file missing)"
		if info, err := os.Stat(p.FilePath); err == nil {
			detail = fmt.Sprintf("  %s", util.FormatBytes(info.Size()))
		}
		fmt.Printf("  %s [%d] %s%s\n", marker, p.ID, p.FilePath, detail)
		if p.Caption != "" {
			fmt.Printf("        %q\n", p.Caption)
		}
		if !p.UploadDate.IsZero() {
			fmt.Printf("        added %s\n", humanize.Time(p.UploadDate))
		}
	}

	return nil
}

func runPhotosSetPrimary(cmd *cobra.Command, args []string) error {
	util.SetVerbose(getBool(cmd, "verbose"))
	util.SetQuiet(getBool(cmd, "quiet"))

	figureID, err := parseID(args[0])
	if err != nil {
		return err
	}
	photoID, err := parseID(args[1])
	if err != nil {
		return err
	}

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.SetPrimaryPhoto(figureID, photoID); err != nil {
		return err
	}

	util.SuccessLog("Photo %d is now the primary photo of figure %d", photoID, figureID)
	return nil
}

func runPhotosDelete(cmd *cobra.Command, args []string) error {
	util.SetVerbose(getBool(cmd, "verbose"))
	util.SetQuiet(getBool(cmd, "quiet"))

	yes, _ := cmd.Flags().GetBool("yes")

	photoID, err := parseID(args[0])
	if err != nil {
		return err
	}

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	photo, err := db.GetPhoto(photoID)
	if err != nil {
		return err
	}
	if photo == nil {
		return fmt.Errorf("photo %d: %w", photoID, util.ErrNotFound)
	}

	if !yes && !confirm(fmt.Sprintf("Delete photo %s?", photo.FilePath)) {
		util.InfoLog("Nothing deleted")
		return nil
	}

	if err := db.DeletePhoto(photoID); err != nil {
		return err
	}

	util.SuccessLog("Deleted photo %d", photoID)
	return nil
}
