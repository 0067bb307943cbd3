// Package validation checks configuration entities at write time. It only
// reports problems; blocking the save is the caller's decision. Errors are
// human-readable messages suitable for direct display in the admin editor.
package validation

import (
	"fmt"

	"solarflow/lib/models"
)

// dependencyNode is one vertex of a dependency graph, generic over the
// entity kind so sections and stages share the same cycle check.
type dependencyNode struct {
	ID        string
	Name      string
	DependsOn []string
}

// ValidateSectionDependencies checks that saving the candidate section would
// not introduce a self-reference or a circular dependency among sections.
// allSections may contain a stale copy of the candidate; the prospective
// post-save graph is what gets checked.
func ValidateSectionDependencies(candidate *models.Section, allSections []models.Section) []string {
	nodes := make([]dependencyNode, 0, len(allSections))
	for i := range allSections {
		nodes = append(nodes, dependencyNode{
			ID:        allSections[i].ID,
			Name:      allSections[i].Name,
			DependsOn: allSections[i].DependsOnSectionIDs,
		})
	}
	return validateAcyclic(dependencyNode{
		ID:        candidate.ID,
		Name:      candidate.Name,
		DependsOn: candidate.DependsOnSectionIDs,
	}, nodes, "Section")
}

// ValidateStageDependencies applies the same self-reference and cycle checks
// to the stage activation graph.
func ValidateStageDependencies(candidate *models.Stage, allStages []models.Stage) []string {
	nodes := make([]dependencyNode, 0, len(allStages))
	for i := range allStages {
		nodes = append(nodes, dependencyNode{
			ID:        allStages[i].ID,
			Name:      allStages[i].Name,
			DependsOn: stageDependencies(&allStages[i]),
		})
	}
	return validateAcyclic(dependencyNode{
		ID:        candidate.ID,
		Name:      candidate.Name,
		DependsOn: stageDependencies(candidate),
	}, nodes, "Stage")
}

func stageDependencies(stage *models.Stage) []string {
	if stage.ActivationRules == nil {
		return nil
	}
	return stage.ActivationRules.RequiredStageIDs
}

// validateAcyclic reports self-references and cycles that the candidate
// would introduce. Each direct dependency is walked depth-first over the
// prospective graph; a per-walk seen set keeps the walk finite even when the
// persisted graph already contains an unrelated latent cycle.
func validateAcyclic(candidate dependencyNode, nodes []dependencyNode, kind string) []string {
	errors := []string{}

	dependsOn := make(map[string][]string, len(nodes)+1)
	names := make(map[string]string, len(nodes)+1)
	for _, node := range nodes {
		dependsOn[node.ID] = node.DependsOn
		names[node.ID] = node.Name
	}
	// Prospective post-save graph: the candidate's edited edges replace any
	// stale copy of it.
	dependsOn[candidate.ID] = candidate.DependsOn
	names[candidate.ID] = candidate.Name

	for _, depID := range candidate.DependsOn {
		if depID == candidate.ID {
			errors = append(errors, fmt.Sprintf("%s %q cannot depend on itself.", kind, candidate.Name))
			continue
		}

		stack := []string{depID}
		seen := map[string]bool{}
		for len(stack) > 0 {
			current := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if current == candidate.ID {
				depName := names[depID]
				if depName == "" {
					depName = depID
				}
				errors = append(errors, fmt.Sprintf(
					"Circular dependency detected: %s %q depends on %q, which eventually depends on %q.",
					kind, candidate.Name, depName, candidate.Name))
				break
			}
			if seen[current] {
				continue
			}
			seen[current] = true
			stack = append(stack, dependsOn[current]...)
		}
	}

	return errors
}

// ValidateSectionContent checks that every question referenced by the
// section exists, one error per dangling reference.
func ValidateSectionContent(candidate *models.Section, allQuestions []models.Question) []string {
	errors := []string{}
	known := make(map[string]bool, len(allQuestions))
	for i := range allQuestions {
		known[allQuestions[i].ID] = true
	}

	for _, questionID := range candidate.RequiredQuestionIDs {
		if !known[questionID] {
			errors = append(errors, fmt.Sprintf("Required question ID %q does not exist.", questionID))
		}
	}
	for _, questionID := range candidate.OptionalQuestionIDs {
		if !known[questionID] {
			errors = append(errors, fmt.Sprintf("Optional question ID %q does not exist.", questionID))
		}
	}
	return errors
}

// QuestionReferences lists the questions and sections whose conditional
// rules reference the given question. A question may only be deleted when
// this comes back empty.
func QuestionReferences(questionID string, allQuestions []models.Question, allSections []models.Section) []string {
	refs := []string{}
	for i := range allQuestions {
		q := &allQuestions[i]
		if q.ID == questionID {
			continue
		}
		if q.ConditionalRule != nil && q.ConditionalRule.Field == questionID {
			refs = append(refs, fmt.Sprintf("question %q", q.Label))
		}
	}
	for i := range allSections {
		s := &allSections[i]
		if s.ConditionalRule != nil && s.ConditionalRule.QuestionID == questionID {
			refs = append(refs, fmt.Sprintf("section %q", s.Name))
		}
	}
	return refs
}
