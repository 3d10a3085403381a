// Package main provides a CLI tool for maintaining the access policy:
// granting and revoking the role IDs that privilege groups recognize.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mortemhouse/mortem/internal/config"
	"github.com/mortemhouse/mortem/internal/game/access"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	group := flag.String("group", "", "privilege group: admin, healer, or moderator (required)")
	role := flag.String("role", "", "role ID to grant or revoke")
	revoke := flag.Bool("revoke", false, "revoke the role instead of granting it")
	list := flag.Bool("list", false, "list the group's roles instead of changing them")
	flag.Parse()

	if *group == "" || (*role == "" && !*list) {
		flag.Usage()
		os.Exit(1)
	}

	if !access.ValidGroup(*group) {
		log.Fatalf("invalid group %q: must be one of admin, healer, moderator", *group)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	store, err := access.Open(cfg.Storage.PolicyPath, zap.NewNop())
	if err != nil {
		log.Fatalf("opening policy store: %v", err)
	}

	switch {
	case *list:
		roles := store.Members(*group)
		fmt.Fprintf(os.Stdout, "%s: [%s]\n", *group, strings.Join(roles, ", "))
	case *revoke:
		removed, err := store.Revoke(*group, *role)
		if err != nil {
			log.Fatalf("revoking role: %v", err)
		}
		if !removed {
			fmt.Fprintf(os.Stdout, "role %s was not in group %s\n", *role, *group)
			return
		}
		fmt.Fprintf(os.Stdout, "revoked role %s from group %s [%s]\n", *role, *group, time.Since(start))
	default:
		if err := store.Grant(*group, *role); err != nil {
			log.Fatalf("granting role: %v", err)
		}
		fmt.Fprintf(os.Stdout, "granted role %s to group %s [%s]\n", *role, *group, time.Since(start))
	}
}
