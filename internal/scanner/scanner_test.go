package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScanModels(t *testing.T) {
	content := `
class UsersController < ApplicationController
  def index
    @users = User.where(active: true)
    @posts = Post.includes(:comments)
    @count = User.count
  end
end
`
	result := Scan(content)
	assert.Equal(t, []string{"User", "Post"}, result.Models)
}

func TestScanSkipsFrameworkReceivers(t *testing.T) {
	content := `
Rails.logger.info("x")
File.read("y")
Time.now
JSON.parse(data)
User.find(1)
`
	result := Scan(content)
	assert.Equal(t, []string{"User"}, result.Models)
}

func TestScanClassNameAssociation(t *testing.T) {
	content := `has_many :authors, class_name: "Writer"`
	result := Scan(content)
	assert.Contains(t, result.Models, "Writer")
}

func TestScanConcerns(t *testing.T) {
	content := `
class User < ApplicationRecord
  include Searchable
  extend Trackable
  include ActiveSupport::Concern
  include Comparable
end
`
	result := Scan(content)
	assert.Equal(t, []string{"Searchable", "Trackable"}, result.Concerns)
}

func TestScanPartials(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"quoted", `<%= render "form" %>`, "form"},
		{"qualified", `<%= render "shared/nav" %>`, "shared/nav"},
		{"partial keyword", `<%= render partial: 'user_card' %>`, "user_card"},
		{"symbol", `<%= render :sidebar %>`, "sidebar"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Scan(tt.content)
			assert.Contains(t, result.Partials, tt.want)
		})
	}
}

func TestScanHelpers(t *testing.T) {
	content := `
class UsersController < ApplicationController
  helper :sessions
end
text = ApplicationHelper.format(x)
`
	result := Scan(content)
	assert.Contains(t, result.Helpers, "sessions")
	assert.Contains(t, result.Helpers, "ApplicationHelper")
}

func TestScanRequires(t *testing.T) {
	content := `
require 'csv'
require_relative "support/loader"
`
	result := Scan(content)
	assert.Equal(t, []string{"csv", "support/loader"}, result.Requires)
}

func TestScanGemSignatures(t *testing.T) {
	content := `
class UsersController < ApplicationController
  before_action :authenticate_user!

  def index
    @users = User.all.page(params[:page])
    authorize @users
  end
end
`
	result := Scan(content)
	assert.Contains(t, result.Gems, "devise")
	assert.Contains(t, result.Gems, "kaminari")
	assert.Contains(t, result.Gems, "pundit")
	assert.NotContains(t, result.Gems, "sidekiq")
}

func TestScanGemSignaturesWithBangAndPredicate(t *testing.T) {
	// Idioms ending in ! or ? are almost always followed by an argument,
	// not a word character.
	result := Scan(`json.array! @users, partial: "users/user", as: :user`)
	assert.Contains(t, result.Gems, "jbuilder")

	result = Scan("if can? :update, @post\nend")
	assert.Contains(t, result.Gems, "cancancan")

	result = Scan("authorize @post")
	assert.Contains(t, result.Gems, "pundit")
}

func TestScanGemOrderIsDeterministic(t *testing.T) {
	content := "authenticate_user!\n.page(1)\nSidekiq::Worker"
	first := Scan(content).Gems
	for range 10 {
		assert.Equal(t, first, Scan(content).Gems)
	}
}

func TestScanDeduplicates(t *testing.T) {
	content := `
User.find(1)
User.where(id: 2)
render "form"
render "form"
`
	result := Scan(content)
	assert.Equal(t, []string{"User"}, result.Models)
	assert.Equal(t, []string{"form"}, result.Partials)
}

func TestEmpty(t *testing.T) {
	assert.True(t, Scan("nothing interesting here").Empty())
	assert.False(t, Scan("User.find(1)").Empty())
}

func TestMerge(t *testing.T) {
	a := Result{Models: []string{"User"}, Gems: []string{"devise"}}
	b := Result{Models: []string{"User", "Post"}, Partials: []string{"form"}}

	a.Merge(b)

	assert.Equal(t, []string{"User", "Post"}, a.Models)
	assert.Equal(t, []string{"devise"}, a.Gems)
	assert.Equal(t, []string{"form"}, a.Partials)
}
