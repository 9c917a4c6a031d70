package ai

import (
	"encoding/json"
	"fmt"
)

func extractionPrompt(language string) string {
	return fmt.Sprintf(`You are an expert at analyzing programming problem screenshots.
Please analyze the provided images and extract the following information:
1. Problem Statement (complete description of the problem)
2. Input Format (description and parameters)
3. Output Format (description, type, and subtype)
4. Time and Space Complexity
5. Test Cases
6. Validation Type
7. Difficulty Level

The programming language is: %s

IMPORTANT: Return ONLY a JSON object with the following structure, without any markdown formatting or code blocks:
{
  "problem_statement": "string",
  "input_format": {
    "description": "string",
    "parameters": []
  },
  "output_format": {
    "description": "string",
    "type": "string",
    "subtype": "string"
  },
  "complexity": {
    "time": "string",
    "space": "string"
  },
  "test_cases": [],
  "validation_type": "string",
  "difficulty": "string"
}`, language)
}

const generationSystemPrompt = "You are an expert programmer. Please provide solutions in the specified format."

func generationPrompt(p *ProblemInfo) string {
	params, _ := json.Marshal(p.InputFormat.Parameters)
	cases, _ := json.Marshal(p.TestCases)
	return fmt.Sprintf(`You are an expert programmer. Please solve the following programming problem in %s:

Problem Statement: %s

Input Format:
%s
Parameters: %s

Output Format:
%s
Type: %s
Subtype: %s

Complexity Requirements:
Time: %s
Space: %s

Test Cases: %s

Validation Type: %s
Difficulty: %s

Please provide a complete solution with:
1. Clear function/method names
2. Proper input/output handling
3. Comments explaining the logic
4. Time and space complexity analysis`,
		p.Language,
		p.ProblemStatement,
		p.InputFormat.Description, params,
		p.OutputFormat.Description, p.OutputFormat.Type, p.OutputFormat.Subtype,
		p.Complexity.Time, p.Complexity.Space,
		cases,
		p.ValidationType,
		p.Difficulty,
	)
}

func debugPrompt(p *ProblemInfo, language string) string {
	params, _ := json.Marshal(p.InputFormat.Parameters)
	cases, _ := json.Marshal(p.TestCases)
	return fmt.Sprintf(`You are an expert programmer and debugger. Please analyze the error screenshots and improve the solution for the following programming problem in %s:

Problem Statement: %s

Input Format:
%s
Parameters: %s

Output Format:
%s
Type: %s
Subtype: %s

Complexity Requirements:
Time: %s
Space: %s

Test Cases: %s

Validation Type: %s
Difficulty: %s

Please provide an improved solution that:
1. Handles the error cases shown in the screenshots
2. Includes proper error handling
3. Has clear comments explaining the fixes
4. Maintains good performance

Return ONLY a JSON object with the fields "code", "thoughts" (array of strings), "time_complexity" and "space_complexity", without any markdown formatting.`,
		language,
		p.ProblemStatement,
		p.InputFormat.Description, params,
		p.OutputFormat.Description, p.OutputFormat.Type, p.OutputFormat.Subtype,
		p.Complexity.Time, p.Complexity.Space,
		cases,
		p.ValidationType,
		p.Difficulty,
	)
}

// solutionSchema constrains structured generation output.
var solutionSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "code": {
      "type": "string",
      "description": "The complete solution code"
    },
    "thoughts": {
      "type": "array",
      "items": {"type": "string"},
      "description": "Array of strings explaining the solution steps"
    },
    "time_complexity": {
      "type": "string",
      "description": "Time complexity analysis"
    },
    "space_complexity": {
      "type": "string",
      "description": "Space complexity analysis"
    }
  },
  "required": ["code", "thoughts", "time_complexity", "space_complexity"],
  "additionalProperties": false
}`)
