package embedded

import (
	_ "embed"
)

// Embed all prompt data files
//
//go:embed data/prompts/image_analysis_system_prompt.txt
var ImageAnalysisSystemPromptTxt []byte

//go:embed data/prompts/image_analysis_prompt.txt
var ImageAnalysisPromptTxt []byte

//go:embed data/prompts/composer_system_prompt.txt
var ComposerSystemPromptTxt []byte

//go:embed data/prompts/music_specification_basic_prompt.txt
var MusicSpecificationBasicPromptTxt []byte

//go:embed data/prompts/music_specification_extended_prompt.txt
var MusicSpecificationExtendedPromptTxt []byte
