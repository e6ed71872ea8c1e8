package gorm

import (
	"github.com/thebtf/dojo/internal/acquisition"
	"github.com/thebtf/dojo/internal/coverage"
	"github.com/thebtf/dojo/internal/credibility"
	"github.com/thebtf/dojo/internal/profile"
	"github.com/thebtf/dojo/internal/tagging"
	"github.com/thebtf/dojo/internal/taxonomy"
)

// The stores satisfy the narrow interfaces their consumers declare.
var (
	_ taxonomy.NodeLister            = (*TaxonomyStore)(nil)
	_ taxonomy.Writer                = (*TaxonomyStore)(nil)
	_ tagging.TagStore               = (*VideoStore)(nil)
	_ coverage.CountSource           = (*VideoStore)(nil)
	_ acquisition.VideoStore         = (*VideoStore)(nil)
	_ acquisition.InstructorRegistry = (*InstructorStore)(nil)
	_ credibility.InstructorStore    = (*InstructorStore)(nil)
	_ credibility.VideoCounter       = (*VideoStore)(nil)
	_ profile.Store                  = (*FeedbackStore)(nil)
)
