package generation

import (
	"fmt"
	"strings"

	"github.com/physicalai/tbrag/internal/profile"
)

// ContextChunk is one retrieved passage passed to answer generation.
type ContextChunk struct {
	ChapterID    int
	SectionTitle string
	Text         string
}

func hardwareList(hw []string) string {
	if len(hw) == 0 {
		return "None"
	}
	return strings.Join(hw, ", ")
}

func answerSystemPrompt(p *profile.Profile) string {
	var personalization string
	if p != nil {
		n := p.Normalized()
		personalization = fmt.Sprintf("\nSTUDENT BACKGROUND:\n"+
			"- Python Proficiency: %s\n"+
			"- Robotics Background: %s\n"+
			"- Hardware Access: %s\n"+
			"\nADAPTATION RULES:\n"+
			"1. Tailor the explanation depth to the student's background.\n"+
			"2. Use analogies from their experience (e.g., software engineering patterns for advanced coders).\n"+
			"3. Suggest practical applications based on their available hardware.\n",
			n.SoftwareExperience.Python, n.RoboticsExperience, hardwareList(n.HardwareAccess))
	}

	return "You are an expert AI assistant for a Physical AI and Humanoid Robotics textbook. " +
		"Your role is to answer questions based ONLY on the provided context from the textbook.\n" +
		personalization + "\n" +
		"Guidelines:\n" +
		"- Provide clear, accurate, and educational answers\n" +
		"- Reference specific chapters/sections when relevant\n" +
		"- If the context doesn't contain enough information, say so\n" +
		"- Use technical terms appropriately for the student's level\n" +
		"- Be concise but thorough\n"
}

func answerUserPrompt(question string, chunks []ContextChunk, selectedText string) string {
	var sb strings.Builder
	if selectedText != "" {
		fmt.Fprintf(&sb, "Selected Text:\n%s\n\n", selectedText)
	} else {
		sb.WriteString("Relevant Context:\n\n")
		for i, c := range chunks {
			fmt.Fprintf(&sb, "[%d] Chapter %d, Section: %s\n%s\n\n", i+1, c.ChapterID, c.SectionTitle, c.Text)
		}
	}
	fmt.Fprintf(&sb, "\nQuestion: %s\n\nAnswer the question based on the context above.", question)
	return sb.String()
}

// hasGPU reports whether any hardware tag names an NVIDIA GPU or a Jetson board.
func hasGPU(hw []string) bool {
	for _, tag := range hw {
		if tag == "gpu_nvidia" || strings.Contains(strings.ToLower(tag), "jetson") {
			return true
		}
	}
	return false
}

func personalizeSystemPrompt(p profile.Profile) string {
	n := p.Normalized()
	var sb strings.Builder

	sb.WriteString("You are an expert educator specializing in Physical AI and Humanoid Robotics. " +
		"Your task is to rewrite the following textbook chapter to be highly personalized " +
		"for a student's specific background while preserving technical accuracy and concept coverage.\n\n")

	python := n.SoftwareExperience.Python
	fmt.Fprintf(&sb, "STUDENT PROFILE:\n- Python Level: %s\n", python)
	switch python {
	case profile.LevelBeginner:
		sb.WriteString("- Use analogies and step-by-step code walkthroughs for beginner Python developers.\n")
	case profile.LevelAdvanced:
		sb.WriteString("- Use precise technical language and mention advanced software engineering patterns (e.g. async, decorators, type hints).\n")
	}

	fmt.Fprintf(&sb, "- Robotics Experience: %s\n", n.RoboticsExperience)
	switch n.RoboticsExperience {
	case profile.RoboticsSimulationOnly:
		sb.WriteString("- Emphasize simulation tools (Gazebo, Isaac Sim) in examples.\n")
	case profile.RoboticsRealHardware:
		sb.WriteString("- Include practical tips for hardware deployment and sensor calibration.\n")
	}

	fmt.Fprintf(&sb, "- Hardware Access: %s\n", hardwareList(n.HardwareAccess))
	if hasGPU(n.HardwareAccess) {
		sb.WriteString("- Mention CUDA, TensorRT, or Jetson-specific optimizations where relevant.\n")
	}
	if len(n.LearningGoals) > 0 {
		fmt.Fprintf(&sb, "- Learning Goals: %s\n", strings.Join(n.LearningGoals, ", "))
	}

	sb.WriteString("\nCORE RULES:\n" +
		"1. DO NOT change the title or the chapter structure.\n" +
		"2. Preserve all Markdown headings and subheadings exactly.\n" +
		"3. DO NOT remove any core concepts or technical definitions.\n" +
		"4. Adapt the explanation style, examples, and analogies to match the profile above.\n" +
		"5. If there is code, ensure it stays valid and functional, but you may explain it at a level matching the Python proficiency.\n" +
		"6. Keep the final output in Markdown format.")
	return sb.String()
}

func translateSystemPrompt(lang Language) string {
	return fmt.Sprintf("You are an expert technical translator specializing in Robotics and AI. "+
		"Translate the following textbook markdown into %s. "+
		"RULES:\n"+
		"1. Preserve technical terms like 'tensor', 'gradient descent', 'backpropagation', 'ROS' in English if no precise natural equivalent exists.\n"+
		"2. Maintain all Markdown syntax (#, -, *, etc.).\n"+
		"3. DO NOT translate any text inside placeholders like [[CODE_BLOCK_N]].\n"+
		"4. Ensure the tone is educational and professional.\n"+
		"5. If Urdu, use proper RTL structure.", lang.Name())
}
