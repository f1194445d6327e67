package scanner

import "regexp"

// Category tags a pattern with the kind of reference it detects.
type Category string

const (
	CategoryModel   Category = "model"
	CategoryConcern Category = "concern"
	CategoryPartial Category = "partial"
	CategoryHelper  Category = "helper"
	CategoryRequire Category = "require"
)

// Pattern is one entry in the idiom table. Submatch 1 of the regexp is the
// captured reference name.
type Pattern struct {
	Category Category
	Regexp   *regexp.Regexp
}

// idiomPatterns is the declarative table the scanner walks. New idioms are
// added here, not in the scan control flow.
var idiomPatterns = []Pattern{
	// ActiveRecord-style data access: User.find(...), Post.where(...)
	{CategoryModel, regexp.MustCompile(`\b([A-Z]\w*)\.(?:find(?:_by|_by!|_each)?|where|create!?|new|all|first!?|last!?|count|exists\?|pluck|joins|includes|order|update!?|destroy(?:_all)?|delete_all|transaction)\b`)},
	// Association macros name their target model indirectly; capture the
	// explicit class_name form.
	{CategoryModel, regexp.MustCompile(`class_name:\s*['"]([A-Z][\w:]*)['"]`)},

	// Mixin declarations: include Searchable, extend Trackable
	{CategoryConcern, regexp.MustCompile(`(?m)^\s*(?:include|extend|prepend)\s+([A-Z][\w:]*)\s*$`)},

	// Template includes: render "shared/nav", render partial: 'form', render :form
	{CategoryPartial, regexp.MustCompile(`render\s*\(?\s*(?:partial:\s*)?['"]([\w/.\-]+)['"]`)},
	{CategoryPartial, regexp.MustCompile(`render\s*\(?\s*(?:partial:\s*)?:(\w+)`)},

	// Helper usage: helper :users, UsersHelper
	{CategoryHelper, regexp.MustCompile(`(?m)^\s*helper\s+:(\w+)`)},
	{CategoryHelper, regexp.MustCompile(`\b([A-Z]\w*Helper)\b`)},

	// Free-form imports.
	{CategoryRequire, regexp.MustCompile(`(?m)^\s*require(?:_relative)?\s+['"]([^'"]+)['"]`)},
}

// mixinSkip lists mixin targets that are framework plumbing rather than
// application concerns.
var mixinSkip = map[string]bool{
	"ActiveSupport::Concern": true,
	"ActiveModel::Model":     true,
	"Comparable":             true,
	"Enumerable":             true,
}

// modelSkip lists capitalised receivers that look like data access but are
// framework or stdlib constants.
var modelSkip = map[string]bool{
	"Rails": true, "File": true, "Dir": true, "Time": true, "Date": true,
	"DateTime": true, "JSON": true, "YAML": true, "ERB": true, "Hash": true,
	"Array": true, "String": true, "Integer": true, "Float": true,
	"Thread": true, "Kernel": true, "Struct": true, "OpenStruct": true,
	"ActiveRecord": true, "ApplicationRecord": true, "ApplicationController": true,
}

// gemSignatures maps gem names to idioms that betray their use. This
// allow-list is the main source of false negatives: gems not listed here go
// undetected. Extending it requires no scanner changes.
var gemSignatures = map[string]*regexp.Regexp{
	"devise":           regexp.MustCompile(`\b(?:devise\b|authenticate_user!|current_user\b|user_signed_in\?)`),
	"kaminari":         regexp.MustCompile(`\.page\(|\bpaginates_per\b`),
	"will_paginate":    regexp.MustCompile(`\.paginate\(|\bwill_paginate\b`),
	"pundit":           regexp.MustCompile(`\bauthorize\s|\bpolicy_scope\b|\bPundit\b`),
	"cancancan":        regexp.MustCompile(`\bload_and_authorize_resource\b|\bcan\?|\bcannot\?|\bCanCan\b`),
	"paperclip":        regexp.MustCompile(`\bhas_attached_file\b`),
	"carrierwave":      regexp.MustCompile(`\bmount_uploader\b`),
	"shrine":           regexp.MustCompile(`\bShrine::Attachment\b|include\s+\w+Uploader::Attachment`),
	"sidekiq":          regexp.MustCompile(`\b(?:Sidekiq|include\s+Sidekiq::(?:Worker|Job)|perform_async)\b`),
	"aasm":             regexp.MustCompile(`\baasm\b`),
	"friendly_id":      regexp.MustCompile(`\bfriendly_id\b|extend\s+FriendlyId`),
	"ransack":          regexp.MustCompile(`\bransack\b|\.result\(distinct:`),
	"draper":           regexp.MustCompile(`\b(?:decorate\b|Draper|ApplicationDecorator)\b`),
	"pg_search":        regexp.MustCompile(`\b(?:pg_search_scope|include\s+PgSearch)\b`),
	"elasticsearch":    regexp.MustCompile(`\b(?:Elasticsearch::Model|__elasticsearch__)\b`),
	"simple_form":      regexp.MustCompile(`\bsimple_form_for\b`),
	"haml":             regexp.MustCompile(`\bHaml::`),
	"jbuilder":         regexp.MustCompile(`\bjson\.(?:extract!|array!|partial!)`),
	"factory_bot":      regexp.MustCompile(`\b(?:FactoryBot|create\(:\w+\)|build\(:\w+\))`),
	"redis":            regexp.MustCompile(`\bRedis\.new\b|\$redis\b`),
	"image_processing": regexp.MustCompile(`\bImageProcessing::`),
}
