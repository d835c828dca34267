package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/satsuralala/face-detection/internal/api"
	"github.com/satsuralala/face-detection/internal/domain"
)

var peopleCmd = &cobra.Command{
	Use:   "people",
	Short: "Manage the missing-person registry",
}

var peopleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every registered missing person",
	RunE: func(cmd *cobra.Command, args []string) error {
		people, err := api.NewClient(cfg.ServerURL).ListPeople(cmd.Context())
		if err != nil {
			return err
		}
		if len(people) == 0 {
			fmt.Println("no people registered")
			return nil
		}
		for _, p := range people {
			fmt.Printf("%-26s %-20s age %-4s last seen %s (%s)\n",
				p.Key(), p.Name, p.Age, p.LastSeenDate, p.LastSeenLocation)
		}
		return nil
	},
}

var peopleGetCmd = &cobra.Command{
	Use:   "get <person-id>",
	Short: "Show one person's record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := api.NewClient(cfg.ServerURL).GetPerson(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("id:        %s\n", p.Key())
		fmt.Printf("name:      %s\n", p.Name)
		fmt.Printf("age:       %s\n", p.Age)
		fmt.Printf("last seen: %s, %s\n", p.LastSeenDate, p.LastSeenLocation)
		fmt.Printf("contact:   %s\n", p.PhoneNumber)
		if p.AddInfo != "" {
			fmt.Printf("notes:     %s\n", p.AddInfo)
		}
		return nil
	},
}

var (
	registerName     string
	registerAge      string
	registerLastSeen string
	registerLocation string
	registerPhone    string
	registerNotes    string
	registerPhoto    string
)

var peopleRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a new missing person with a reference photo",
	RunE: func(cmd *cobra.Command, args []string) error {
		person := domain.Person{
			Name:             registerName,
			Age:              registerAge,
			LastSeenDate:     registerLastSeen,
			LastSeenLocation: registerLocation,
			PhoneNumber:      registerPhone,
			AddInfo:          registerNotes,
		}
		created, err := api.NewClient(cfg.ServerURL).RegisterPerson(cmd.Context(), person, registerPhoto)
		if err != nil {
			return err
		}
		fmt.Printf("registered %s as %s\n", created.Name, created.Key())
		return nil
	},
}

func init() {
	peopleRegisterCmd.Flags().StringVar(&registerName, "name", "", "person's full name")
	peopleRegisterCmd.Flags().StringVar(&registerAge, "age", "", "person's age")
	peopleRegisterCmd.Flags().StringVar(&registerLastSeen, "last-seen", "", "date last seen")
	peopleRegisterCmd.Flags().StringVar(&registerLocation, "location", "", "place last seen")
	peopleRegisterCmd.Flags().StringVar(&registerPhone, "phone", "", "contact phone number")
	peopleRegisterCmd.Flags().StringVar(&registerNotes, "notes", "", "additional information")
	peopleRegisterCmd.Flags().StringVar(&registerPhoto, "photo", "", "path to a reference photo")
	peopleRegisterCmd.MarkFlagRequired("name")
	peopleRegisterCmd.MarkFlagRequired("photo")

	peopleCmd.AddCommand(peopleListCmd, peopleGetCmd, peopleRegisterCmd)
	rootCmd.AddCommand(peopleCmd)
}
