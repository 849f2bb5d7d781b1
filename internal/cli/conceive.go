package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vorion/trustgate/internal/model"
	"github.com/vorion/trustgate/internal/trust"
)

var conceiveFlags struct {
	level        int
	creation     string
	domain       string
	vetting      string
	parentID     string
	parentScore  int
	generation   int
	trainerScore int
	creatorScore int
	courses      int
	certs        int
}

func init() {
	rootCmd.AddCommand(conceiveCmd)
	f := conceiveCmd.Flags()
	f.IntVar(&conceiveFlags.level, "level", 0, "Hierarchy level 0-8")
	f.StringVar(&conceiveFlags.creation, "creation", "fresh", "Creation type: fresh|cloned|evolved|promoted|imported")
	f.StringVar(&conceiveFlags.domain, "domain", "general", "Operating domain")
	f.StringVar(&conceiveFlags.vetting, "vetting", "none", "Vetting gate: none|basic|standard|rigorous|council")
	f.StringVar(&conceiveFlags.parentID, "parent", "", "Parent agent id for lineage inheritance")
	f.IntVar(&conceiveFlags.parentScore, "parent-score", 0, "Parent agent trust score")
	f.IntVar(&conceiveFlags.generation, "generation", 0, "Lineage generation")
	f.IntVar(&conceiveFlags.trainerScore, "trainer-score", -1, "Trainer trust score (-1 for none)")
	f.IntVar(&conceiveFlags.creatorScore, "creator-score", -1, "Creator trust score (-1 for none)")
	f.IntVar(&conceiveFlags.courses, "courses", 0, "Completed academy courses")
	f.IntVar(&conceiveFlags.certs, "certifications", 0, "Completed certifications")
}

var conceiveCmd = &cobra.Command{
	Use:   "conceive <agent-id>",
	Short: "Create an agent with its initial trust state",
	Long: "Computes conception trust from the hierarchy baseline and the declared\n" +
		"modifiers, persists the new record, and prints the full rationale.",
	Args: cobra.ExactArgs(1),
	RunE: runConceive,
}

func runConceive(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	cctx := &model.ConceptionContext{
		AgentID:                 args[0],
		CreationType:            model.CreationType(conceiveFlags.creation),
		HierarchyLevel:          model.HierarchyLevel(conceiveFlags.level),
		Domain:                  conceiveFlags.domain,
		VettingGate:             model.VettingGate(conceiveFlags.vetting),
		CompletedCourses:        conceiveFlags.courses,
		CompletedCertifications: conceiveFlags.certs,
	}
	if conceiveFlags.parentID != "" {
		cctx.Lineage = &model.Lineage{
			ParentID:    conceiveFlags.parentID,
			ParentScore: model.TrustScore(conceiveFlags.parentScore),
			Generation:  conceiveFlags.generation,
		}
	}
	if conceiveFlags.trainerScore >= 0 {
		score := model.TrustScore(conceiveFlags.trainerScore)
		cctx.TrainerScore = &score
	}
	if conceiveFlags.creatorScore >= 0 {
		score := model.TrustScore(conceiveFlags.creatorScore)
		cctx.CreatorScore = &score
	}

	svc := trust.NewService(st, logger, trust.WithDailyGainCap(cfg.Trust.DailyGainCap))
	result, err := svc.Conceive(cmd.Context(), cctx)
	if err != nil {
		return err
	}

	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))
	return nil
}
