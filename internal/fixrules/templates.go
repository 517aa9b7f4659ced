package fixrules

// Literal bodies for config files whose content is standard enough to
// write without generation. Keyed by base filename.
var fileTemplates = map[string]string{
	"tsconfig.node.json": `{
  "compilerOptions": {
    "composite": true,
    "skipLibCheck": true,
    "module": "ESNext",
    "moduleResolution": "bundler",
    "allowSyntheticDefaultImports": true
  },
  "include": ["vite.config.ts"]
}
`,

	"postcss.config.js": `export default {
  plugins: {
    tailwindcss: {},
    autoprefixer: {},
  },
}
`,

	".env": `# Environment variables for local development.
# Add KEY=value pairs below; restart the dev server after changes.
`,
}
