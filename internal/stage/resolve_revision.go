package stage

import (
	"fmt"

	"github.com/go-git/go-git/v5"
)

// shortHashLen is the length of revision names taken from commit hashes.
const shortHashLen = 12

// gitRevision names the HEAD commit of the repository containing dir.
func gitRevision(dir string) (string, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", fmt.Errorf("open repository at %s: %w", dir, err)
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolve HEAD of %s: %w", dir, err)
	}
	return head.Hash().String()[:shortHashLen], nil
}

// resolveRevisions fills empty revision names from the trees' repositories.
func resolveRevisions(s *Settings) error {
	if s.NewRevision == "" {
		rev, err := gitRevision(s.NewDirectory)
		if err != nil {
			return newError(KindConfig, ValidateConfigStage, err)
		}
		s.NewRevision = rev
	}
	if s.OldRevision == "" && s.OldDirectory != "" {
		rev, err := gitRevision(s.OldDirectory)
		if err != nil {
			return newError(KindConfig, ValidateConfigStage, err)
		}
		s.OldRevision = rev
	}
	return nil
}
